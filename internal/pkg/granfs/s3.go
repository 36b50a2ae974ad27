package granfs

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattetti/filebuffer"
)

// readChunkSize is the size of range GETs made when reading S3 objects
const readChunkSize = 20 * 1024 * 1024

// maxCachedObjects bounds the object info cache
const maxCachedObjects = 10000

// S3FileSystem serves files stored in Amazon S3. Paths are s3:// URIs.
type S3FileSystem struct {
	s3Client    *s3.S3
	objectCache *lru.Cache
}

func parseS3URI(uri string) (*url.URL, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "s3" {
		return nil, fmt.Errorf("invalid s3 URI: %s", uri)
	}
	parsed.Path = strings.TrimPrefix(parsed.Path, "/")
	return parsed, nil
}

// objectMatches reports whether an object key matches a path pattern.
// Patterns without glob characters are treated as an exact key or a
// directory prefix.
func objectMatches(pattern, key string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return key == pattern || strings.HasPrefix(key, strings.TrimSuffix(pattern, "/")+"/")
	}
	matched, err := filepath.Match(pattern, key)
	return err == nil && matched
}

// ListFiles lists objects that match pathGlob.
func (s *S3FileSystem) ListFiles(pathGlob string) ([]FileInfo, error) {
	parsed, err := parseS3URI(pathGlob)
	if err != nil {
		return nil, err
	}

	prefix := parsed.Path
	if idx := strings.IndexAny(prefix, "*?["); idx != -1 {
		prefix = prefix[:idx]
	}

	s3Files := make([]FileInfo, 0)
	params := &s3.ListObjectsInput{
		Bucket: aws.String(parsed.Host),
		Prefix: aws.String(prefix),
	}
	err = s.s3Client.ListObjectsPages(params,
		func(page *s3.ListObjectsOutput, _ bool) bool {
			for _, object := range page.Contents {
				if !objectMatches(parsed.Path, *object.Key) {
					continue
				}
				fInfo := FileInfo{
					Name: fmt.Sprintf("s3://%s/%s", parsed.Host, *object.Key),
					Size: *object.Size,
				}
				s3Files = append(s3Files, fInfo)
				s.objectCache.Add(fInfo.Name, fInfo)
			}
			return true
		})

	return s3Files, err
}

// OpenReader opens the object at filePath for reading, starting at
// offset startAt. The object is read in chunks of range GETs.
func (s *S3FileSystem) OpenReader(filePath string, startAt int64) (io.ReadCloser, error) {
	fInfo, err := s.Stat(filePath)
	if err != nil {
		return nil, err
	}

	if startAt >= fInfo.Size {
		return ioutil.NopCloser(strings.NewReader("")), nil
	}

	parsed, err := parseS3URI(filePath)
	if err != nil {
		return nil, err
	}

	reader := &s3Reader{
		client:    s.s3Client,
		bucket:    parsed.Host,
		key:       parsed.Path,
		offset:    startAt,
		chunkSize: readChunkSize,
		totalSize: fInfo.Size,
	}
	err = reader.loadNextChunk()
	return reader, err
}

// OpenWriter opens a writer to the object at filePath. Data is buffered
// in memory and uploaded when the writer is closed.
func (s *S3FileSystem) OpenWriter(filePath string) (io.WriteCloser, error) {
	parsed, err := parseS3URI(filePath)
	if err != nil {
		return nil, err
	}

	writer := &s3Writer{
		client: s.s3Client,
		bucket: parsed.Host,
		key:    parsed.Path,
		buf:    filebuffer.New(nil),
	}
	return writer, nil
}

// Stat returns info about the object at filePath.
func (s *S3FileSystem) Stat(filePath string) (FileInfo, error) {
	if fInfo, exists := s.objectCache.Get(filePath); exists {
		return fInfo.(FileInfo), nil
	}

	parsed, err := parseS3URI(filePath)
	if err != nil {
		return FileInfo{}, err
	}

	params := &s3.ListObjectsInput{
		Bucket: aws.String(parsed.Host),
		Prefix: aws.String(parsed.Path),
	}
	result, err := s.s3Client.ListObjects(params)
	if err != nil {
		return FileInfo{}, err
	}

	for _, object := range result.Contents {
		if *object.Key == parsed.Path {
			fInfo := FileInfo{
				Name: filePath,
				Size: *object.Size,
			}
			s.objectCache.Add(filePath, fInfo)
			return fInfo, nil
		}
	}

	return FileInfo{}, fmt.Errorf("no object found at %s", filePath)
}

// Delete removes the object at filePath.
func (s *S3FileSystem) Delete(filePath string) error {
	parsed, err := parseS3URI(filePath)
	if err != nil {
		return err
	}

	params := &s3.DeleteObjectInput{
		Bucket: aws.String(parsed.Host),
		Key:    aws.String(parsed.Path),
	}
	_, err = s.s3Client.DeleteObject(params)
	s.objectCache.Remove(filePath)
	return err
}

// Join joins path elements with "/".
func (s *S3FileSystem) Join(elem ...string) string {
	stripped := make([]string, len(elem))
	for i, str := range elem {
		stripped[i] = strings.TrimSuffix(str, "/")
	}
	return strings.Join(stripped, "/")
}

// Init initializes the S3 filesystem from the ambient AWS configuration.
func (s *S3FileSystem) Init() error {
	os.Setenv("AWS_SDK_LOAD_CONFIG", "true")
	sess, err := session.NewSession()
	if err != nil {
		return err
	}
	s.s3Client = s3.New(sess)

	s.objectCache, err = lru.New(maxCachedObjects)
	return err
}
