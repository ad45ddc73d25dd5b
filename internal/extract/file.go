package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileHash computes the SHA-256 digest of the file at path, streaming so
// large uploads do not land in memory. The hex digest is the document's
// identity for deduplication.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SanitizeFilename strips path components and replaces characters outside
// [A-Za-z0-9._-] so a caller-supplied name is safe to store and log.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)

	var b strings.Builder
	for _, c := range filename {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := b.String()
	if sanitized == "" || sanitized == "." {
		return "unnamed_file"
	}
	// A leading dot would hide the file on disk.
	if strings.HasPrefix(sanitized, ".") {
		sanitized = "file_" + sanitized[1:]
	}
	return sanitized
}
