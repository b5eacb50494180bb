package upload

import (
	"bytes"
	"regexp"
	"unicode/utf8"
)

var (
	scriptTag   = []byte("<script")
	phpOpenTag  = []byte("<?php")
	evalCall    = []byte("eval(")
	svgDataURI  = regexp.MustCompile(`(?i)(?:href|src)\s*=\s*["']?\s*data:`)
	svgExternal = regexp.MustCompile(`(?i)xlink:href\s*=\s*["']?\s*https?:`)
)

// dangerousContent returns one message per suspicious construct found in
// data. Data that is not valid UTF-8 is treated as binary and skipped.
func dangerousContent(data []byte, mimeType string) []string {
	if !utf8.Valid(data) {
		return nil
	}
	lower := bytes.ToLower(data)

	var found []string
	if bytes.Contains(lower, scriptTag) {
		found = append(found, "File contains a script tag")
	}
	if bytes.Contains(lower, phpOpenTag) {
		found = append(found, "File contains PHP code")
	}
	if bytes.Contains(lower, evalCall) {
		found = append(found, "File contains an eval() call")
	}
	if mimeType == MIMESVG || bytes.Contains(lower, []byte("<svg")) {
		if svgDataURI.Match(data) {
			found = append(found, "SVG contains an embedded data: URI")
		}
		if svgExternal.Match(data) {
			found = append(found, "SVG references an external resource")
		}
	}
	return found
}
