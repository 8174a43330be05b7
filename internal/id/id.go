// Package id names stored video files. Chapter ids are integers assigned by
// the chapter store, not by this package.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// VideoPrefix starts every stored video name.
const VideoPrefix = "vid-"

// keyLength is the size of a default nanoid.
const keyLength = 21

// maxExtLength bounds the extension kept on a stored name, dot included.
const maxExtLength = 8

// VideoFile returns a fresh stored-file name such as vid-V1StGXR8_Z5jdHi6B-myT.mp4.
// ext is lowercased and must be empty or a dot followed by letters and digits.
func VideoFile(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !validExt(ext) {
		return "", fmt.Errorf("invalid video extension %q", ext)
	}

	key, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return VideoPrefix + key + ext, nil
}

// ParseVideoFile splits a name produced by VideoFile into its key and extension.
// ok is false for anything else, including names with path separators.
func ParseVideoFile(name string) (key, ext string, ok bool) {
	rest, found := strings.CutPrefix(name, VideoPrefix)
	if !found || len(rest) < keyLength {
		return "", "", false
	}

	key, ext = rest[:keyLength], rest[keyLength:]
	for _, r := range key {
		if !isKeyRune(r) {
			return "", "", false
		}
	}
	if !validExt(ext) || ext != strings.ToLower(ext) {
		return "", "", false
	}
	return key, ext, true
}

// IsVideoFile reports whether name could have come from VideoFile.
func IsVideoFile(name string) bool {
	_, _, ok := ParseVideoFile(name)
	return ok
}

func validExt(ext string) bool {
	if ext == "" {
		return true
	}
	if len(ext) < 2 || len(ext) > maxExtLength || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// isKeyRune matches the nanoid default alphabet.
func isKeyRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-'
}
