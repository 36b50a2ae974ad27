package granfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitFilesystem(t *testing.T) {
	fs := InitFilesystem(S3)
	assert.NotNil(t, fs)
	assert.IsType(t, &S3FileSystem{}, fs)

	fs = InitFilesystem(Local)
	assert.NotNil(t, fs)
	assert.IsType(t, &LocalFileSystem{}, fs)
}

func TestInferFilesystem(t *testing.T) {
	fs := InferFilesystem("s3://foo/bar.txt")
	assert.NotNil(t, fs)
	assert.IsType(t, &S3FileSystem{}, fs)

	fs = InferFilesystem("./bar.txt")
	assert.NotNil(t, fs)
	assert.IsType(t, &LocalFileSystem{}, fs)
}

func TestObjectMatches(t *testing.T) {
	var matchTests = []struct {
		pattern string
		key     string
		matches bool
	}{
		{"job/map-bin0-1.out", "job/map-bin0-1.out", true},
		{"job", "job/output-part-0", true},
		{"job/map-bin0-*", "job/map-bin0-12.out", true},
		{"job/map-bin0-*", "job/map-bin1-12.out", false},
		{"job/output-part-*", "job/map-bin0-1.out", false},
	}

	for _, test := range matchTests {
		assert.Equal(t, test.matches, objectMatches(test.pattern, test.key),
			"pattern %q against key %q", test.pattern, test.key)
	}
}
