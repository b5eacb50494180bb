package upload

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashley-ai/sentinel/internal/util"
)

// MaxFileNameLength caps sanitized names.
const MaxFileNameLength = 255

// Extension returns the lowercased extension of name without the dot, or
// "" when there is none.
func Extension(name string) string {
	ext := path.Ext(strings.ReplaceAll(name, "\\", "/"))
	if len(ext) <= 1 {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// SanitizeFileName reduces name to letters, digits, spaces, dots and
// hyphens. Accented letters are decomposed first so "é" keeps its base
// letter. Runs of dots collapse to one, leading and trailing dots and
// spaces are trimmed and the result is capped at MaxFileNameLength with
// the extension preserved. An empty result becomes "file".
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range util.Normalize(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '.', r == '-':
			b.WriteRune(r)
		}
	}

	s := collapseDots(b.String())
	s = strings.Trim(s, ". ")

	if len(s) > MaxFileNameLength {
		ext := ""
		if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= 16 {
			ext = s[i:]
			s = s[:i]
		}
		s = strings.TrimRight(s[:MaxFileNameLength-len(ext)], ". ") + ext
	}

	if s == "" {
		return "file"
	}
	return s
}

func collapseDots(s string) string {
	var b strings.Builder
	prevDot := false
	for _, r := range s {
		if r == '.' {
			if prevDot {
				continue
			}
			prevDot = true
		} else {
			prevDot = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GenerateSecureFileName returns a storage name of the form
// "<unix millis>-<8 random [a-z0-9]>.<ext>", keeping only the extension of
// original. Files without a usable extension get ".bin".
func GenerateSecureFileName(original string) (string, error) {
	suffix, err := util.RandomChars(8)
	if err != nil {
		return "", err
	}
	ext := safeExtension(Extension(original))
	if ext == "" {
		ext = "bin"
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + suffix + "." + ext, nil
}

func safeExtension(ext string) string {
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if utf8.RuneCountInString(b.String()) > 10 {
		return ""
	}
	return b.String()
}
