package file

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// FileMD5 calculates the MD5 checksum of a file.
func FileMD5(path string) (string, error) {
	return fileHash(path, md5.New())
}

// FileSHA256 calculates the SHA256 checksum of a file.
func FileSHA256(path string) (string, error) {
	return fileHash(path, sha256.New())
}

func fileHash(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum checks path against expected. The algorithm is taken from an optional
// "md5:" or "sha256:" prefix, otherwise inferred from the digest length.
func VerifyChecksum(path, expected string) error {
	algo, digest := "", strings.ToLower(strings.TrimSpace(expected))
	if i := strings.Index(digest, ":"); i > 0 {
		algo, digest = digest[:i], digest[i+1:]
	}
	if algo == "" {
		switch len(digest) {
		case 32:
			algo = "md5"
		case 64:
			algo = "sha256"
		default:
			return fmt.Errorf("cannot infer checksum type of %q for %s", expected, path)
		}
	}
	var actual string
	var err error
	switch algo {
	case "md5":
		actual, err = FileMD5(path)
	case "sha256":
		actual, err = FileSHA256(path)
	default:
		return fmt.Errorf("unsupported checksum type %q for %s", algo, path)
	}
	if err != nil {
		return err
	}
	if actual != digest {
		return fmt.Errorf("checksum mismatch for %s: expected %s %s, got %s", path, algo, digest, actual)
	}
	return nil
}
