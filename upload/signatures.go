package upload

import (
	"encoding/hex"
	"slices"
	"strings"
)

// signatureLen is how many leading bytes are compared.
const signatureLen = 16

// signatures maps a MIME type to the accepted hex prefixes of its first
// bytes. Types without an entry are not checked.
var signatures = map[string][]string{
	MIMEJPEG: {"FFD8FF"},
	MIMEPNG:  {"89504E47"},
	MIMEGIF:  {"47494638"},
	MIMEWEBP: {"52494646"},
	MIMEPDF:  {"25504446"},
	MIMEZIP:  {"504B0304"},
	MIMEDOCX: {"504B0304"},
	MIMEXLSX: {"504B0304"},
	MIMEDOC:  {"D0CF11E0A1B11AE1"},
	MIMEXLS:  {"D0CF11E0A1B11AE1"},
}

// mimeExtensions lists the extensions expected for a MIME type.
var mimeExtensions = map[string][]string{
	MIMEJPEG: {"jpg", "jpeg"},
	MIMEPNG:  {"png"},
	MIMEGIF:  {"gif"},
	MIMEWEBP: {"webp"},
	MIMESVG:  {"svg"},
	MIMEPDF:  {"pdf"},
	MIMEZIP:  {"zip"},
	MIMEDOC:  {"doc"},
	MIMEDOCX: {"docx"},
	MIMEXLS:  {"xls"},
	MIMEXLSX: {"xlsx"},
	MIMECSV:  {"csv"},
	MIMEText: {"txt"},
	MIMEJSON: {"json"},
}

// leadingHex returns the uppercase hex encoding of the first 16 bytes.
func leadingHex(data []byte) string {
	if len(data) > signatureLen {
		data = data[:signatureLen]
	}
	return strings.ToUpper(hex.EncodeToString(data))
}

// MatchesSignature reports whether data starts with a known signature for
// mimeType. Types without a signature always match.
func MatchesSignature(data []byte, mimeType string) bool {
	sigs, ok := signatures[mimeType]
	if !ok {
		return true
	}
	head := leadingHex(data)
	for _, sig := range sigs {
		if strings.HasPrefix(head, sig) {
			return true
		}
	}
	return false
}

// AllowedExtensionsFor lists the extensions expected for mimeTypes,
// deduplicated and sorted.
func AllowedExtensionsFor(mimeTypes []string) []string {
	var out []string
	for _, m := range mimeTypes {
		out = append(out, mimeExtensions[m]...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// MIMETypeFor returns the MIME type registered for the extension of name,
// or "" when the extension is unknown.
func MIMETypeFor(name string) string {
	ext := Extension(name)
	for m, exts := range mimeExtensions {
		if slices.Contains(exts, ext) {
			return m
		}
	}
	return ""
}
