// Package fileid derives content checksums for ingested documents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

const contentPrefix = "sha256:"

// ContentID returns the checksum of content. Identical bytes yield the same ID regardless of name.
func ContentID(content []byte) string {
	hash := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(hash[:])
}

// FileContentID streams the file at path through sha256 and returns its ContentID.
func FileContentID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return contentPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
