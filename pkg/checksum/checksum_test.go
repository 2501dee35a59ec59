package checksum

import (
	"crypto"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFile_KnownDigest(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"abc", "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := File(writeFile(t, "f.jar", []byte(tt.data)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFile_Deterministic(t *testing.T) {
	path := writeFile(t, "lib.jar", []byte("PK\x03\x04 some jar content"))

	first, err := File(path)
	require.NoError(t, err)
	second, err := File(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 40)
	assert.Regexp(t, "^[0-9a-f]{40}$", first)
}

func TestFile_OneByteChangesDigest(t *testing.T) {
	data := []byte("0123456789abcdef")
	a, err := File(writeFile(t, "a.jar", data))
	require.NoError(t, err)

	data[7] ^= 0x01
	b, err := File(writeFile(t, "b.jar", data))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFile_LargerThanBuffer(t *testing.T) {
	data := make([]byte, 3*bufferSize+17)
	for i := range data {
		data[i] = byte(i)
	}
	got, err := File(writeFile(t, "big.jar", data))
	require.NoError(t, err)

	h := crypto.SHA1.New()
	h.Write(data)
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), got)
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.jar"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlgorithmUnavailable(err))
}

func TestFile_Directory(t *testing.T) {
	_, err := File(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFile_AlgorithmUnavailable(t *testing.T) {
	orig := algorithm
	algorithm = crypto.Hash(0)
	defer func() { algorithm = orig }()

	_, err := File(writeFile(t, "x.jar", []byte("x")))
	require.Error(t, err)
	assert.True(t, IsAlgorithmUnavailable(err))
}

type countingHasher struct{ calls int }

func (c *countingHasher) File(path string) (string, error) {
	c.calls++
	return File(path)
}

func TestCache_HashesOncePerFile(t *testing.T) {
	path := writeFile(t, "dup.jar", []byte("diamond"))
	next := &countingHasher{}
	c, err := NewCache(8, next)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		sum, err := c.File(path)
		require.NoError(t, err)
		assert.Len(t, sum, 40)
	}

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, int64(2), c.Hits())
	assert.Equal(t, int64(1), c.Misses())
	assert.Equal(t, 1, c.Len())
}

func TestCache_RewrittenFileIsRehashed(t *testing.T) {
	path := writeFile(t, "lib.jar", []byte("v1"))
	c, err := NewCache(0, nil)
	require.NoError(t, err)

	first, err := c.File(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2 longer"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := c.File(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(2), c.Misses())
}

func TestCache_MissingFile(t *testing.T) {
	c, err := NewCache(4, nil)
	require.NoError(t, err)

	_, err = c.File(filepath.Join(t.TempDir(), "gone.jar"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, c.Len())
}
