// Package checksum computes content hashes of artifact files.
//
// The digest is SHA-1, hex encoded in lower case. The evaluation service
// matches artifacts by this value, so the algorithm is fixed.
package checksum

import (
	"crypto"
	_ "crypto/sha1" // registers crypto.SHA1
	"encoding/hex"
	"io"
	"os"

	"github.com/exploopio/depaudit/pkg/errors"
)

// Tag is prefixed to a digest when it is embedded in a report.
const Tag = "sha-1:"

// algorithm is a variable so tests can simulate a missing hash primitive.
var algorithm = crypto.SHA1

const bufferSize = 32 * 1024

// Hasher computes the checksum of a file.
type Hasher interface {
	File(path string) (string, error)
}

// FileHasher hashes files directly, without caching.
type FileHasher struct{}

// File implements Hasher.
func (FileHasher) File(path string) (string, error) {
	return File(path)
}

// File streams the file at path through SHA-1 and returns the hex digest.
//
// A missing or unreadable file yields a KindNotFound error, an unavailable
// hash primitive a KindAlgorithmUnavailable error.
func File(path string) (string, error) {
	if !algorithm.Available() {
		return "", errors.E(errors.KindAlgorithmUnavailable, "checksum.File", "hash algorithm not linked into binary")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.E(errors.KindNotFound, "checksum.File", err)
	}
	defer f.Close()

	adviseSequential(f)

	h := algorithm.New()
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.E(errors.KindNotFound, "checksum.File", "read "+path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsNotFound reports whether err means the file was missing or unreadable.
func IsNotFound(err error) bool {
	return errors.GetKind(err) == errors.KindNotFound
}

// IsAlgorithmUnavailable reports whether err means the hash primitive could
// not be obtained.
func IsAlgorithmUnavailable(err error) bool {
	return errors.GetKind(err) == errors.KindAlgorithmUnavailable
}

var _ Hasher = FileHasher{}
