package granfs

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// LocalFileSystem serves files from the local disk.
type LocalFileSystem struct{}

func walkDir(dir string) []FileInfo {
	files := make([]FileInfo, 0)
	filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			log.Error(err)
			return err
		}
		if f.IsDir() {
			return nil
		}
		files = append(files, FileInfo{
			Name: path,
			Size: f.Size(),
		})
		return nil
	})

	return files
}

// ListFiles returns files matching pathGlob. Directories are walked
// recursively.
func (l *LocalFileSystem) ListFiles(pathGlob string) ([]FileInfo, error) {
	globbedFiles, err := filepath.Glob(pathGlob)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0)
	for _, fileName := range globbedFiles {
		fInfo, err := os.Stat(fileName)
		if err != nil {
			log.Error(err)
			continue
		}
		if !fInfo.IsDir() {
			files = append(files, FileInfo{
				Name: fileName,
				Size: fInfo.Size(),
			})
		} else {
			files = append(files, walkDir(fileName)...)
		}
	}

	return files, err
}

// OpenReader opens filePath for reading, starting at offset startAt.
func (l *LocalFileSystem) OpenReader(filePath string, startAt int64) (io.ReadCloser, error) {
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0600)
	if err != nil {
		return nil, err
	}
	_, err = file.Seek(startAt, io.SeekStart)
	return file, err
}

// OpenWriter opens filePath for writing, truncating any existing file.
// Missing parent directories are created.
func (l *LocalFileSystem) OpenWriter(filePath string) (io.WriteCloser, error) {
	err := os.MkdirAll(filepath.Dir(filePath), 0777)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
}

// Stat returns file info for filePath.
func (l *LocalFileSystem) Stat(filePath string) (FileInfo, error) {
	fInfo, err := os.Stat(filePath)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name: filePath,
		Size: fInfo.Size(),
	}, nil
}

// Delete removes the file at filePath.
func (l *LocalFileSystem) Delete(filePath string) error {
	return os.Remove(filePath)
}

// Join joins path elements with the local path separator.
func (l *LocalFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Init initializes the local filesystem.
func (l *LocalFileSystem) Init() error {
	return nil
}
