// Package upload certifies that an uploaded byte stream matches its
// declared type and carries no structurally dangerous content before it is
// persisted.
package upload

// MIME types known to the validator.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWEBP = "image/webp"
	MIMESVG  = "image/svg+xml"
	MIMEPDF  = "application/pdf"
	MIMEZIP  = "application/zip"
	MIMEDOC  = "application/msword"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMECSV  = "text/csv"
	MIMEText = "text/plain"
	MIMEJSON = "application/json"
)

// MB is one mebibyte.
const MB = 1 << 20

// Config controls one validation.
type Config struct {
	// MaxSize is the largest accepted size in bytes. Zero means no limit.
	MaxSize int64 `json:"max_size" yaml:"max_size"`
	// AllowedMIMETypes restricts the declared type when non-empty.
	AllowedMIMETypes []string `json:"allowed_mime_types" yaml:"allowed_mime_types"`
	// AllowedExtensions restricts the extension (without dot,
	// case-insensitive) when non-empty.
	AllowedExtensions []string `json:"allowed_extensions" yaml:"allowed_extensions"`
	// CheckMagicBytes verifies the leading bytes against the declared type.
	CheckMagicBytes bool `json:"check_magic_bytes" yaml:"check_magic_bytes"`
	// ScanMalware sends accepted files to the configured Scanner.
	ScanMalware bool `json:"scan_malware" yaml:"scan_malware"`
}

// ImageProfile accepts common web images up to 10MB.
func ImageProfile() Config {
	return Config{
		MaxSize:           10 * MB,
		AllowedMIMETypes:  []string{MIMEJPEG, MIMEPNG, MIMEGIF, MIMEWEBP, MIMESVG},
		AllowedExtensions: []string{"jpg", "jpeg", "png", "gif", "webp", "svg"},
		CheckMagicBytes:   true,
	}
}

// DocumentProfile accepts office documents and text up to 50MB and asks
// for a malware scan.
func DocumentProfile() Config {
	return Config{
		MaxSize:           50 * MB,
		AllowedMIMETypes:  []string{MIMEPDF, MIMEDOCX, MIMEXLSX, MIMECSV, MIMEText},
		AllowedExtensions: []string{"pdf", "docx", "xlsx", "csv", "txt"},
		CheckMagicBytes:   true,
		ScanMalware:       true,
	}
}

// Profile returns a named preset ("image" or "document").
func Profile(name string) (Config, bool) {
	switch name {
	case "image", "images":
		return ImageProfile(), true
	case "document", "documents":
		return DocumentProfile(), true
	}
	return Config{}, false
}

// File is one uploaded file.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// FileInfo describes an accepted file.
type FileInfo struct {
	OriginalName  string `json:"original_name"`
	SanitizedName string `json:"sanitized_name"`
	Size          int64  `json:"size"`
	MIMEType      string `json:"mime_type"`
	Extension     string `json:"extension"`
	SHA256        string `json:"sha256"`
}

// Result is the outcome of validating one file. File is set only when
// Valid is true.
type Result struct {
	Valid    bool      `json:"valid"`
	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
	File     *FileInfo `json:"file,omitempty"`
}

// BatchResult is the outcome of ValidateFiles.
type BatchResult struct {
	Valid   bool     `json:"valid"`
	Results []Result `json:"results"`
}
