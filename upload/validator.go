package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ashley-ai/sentinel/internal/util"
)

// ScanNotConfigured is the warning emitted when a scan is requested but no
// Scanner is installed.
const ScanNotConfigured = "malware scanning is not configured; file was not scanned"

// Validator checks uploaded files against a Config.
type Validator struct {
	scanner Scanner
	logger  *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithScanner installs a malware scanner.
func WithScanner(s Scanner) Option {
	return func(v *Validator) { v.scanner = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// NewValidator returns a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("component", "upload")
	return v
}

// Validate runs every check and collects all applicable errors. The
// signature and content checks only run when the earlier checks passed.
func (v *Validator) Validate(ctx context.Context, f File, cfg Config) Result {
	res := Result{Errors: []string{}, Warnings: []string{}}
	size := int64(len(f.Data))
	ext := Extension(f.Name)

	switch {
	case size == 0:
		res.Errors = append(res.Errors, "File is empty")
	case cfg.MaxSize > 0 && size > cfg.MaxSize:
		res.Errors = append(res.Errors, fmt.Sprintf("File size (%s) exceeds %s limit",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(cfg.MaxSize))))
	}

	if len(cfg.AllowedMIMETypes) > 0 && !slices.Contains(cfg.AllowedMIMETypes, f.MIMEType) {
		res.Errors = append(res.Errors, fmt.Sprintf("File type %q is not allowed", f.MIMEType))
	}

	if len(cfg.AllowedExtensions) > 0 {
		switch {
		case ext == "":
			res.Errors = append(res.Errors, "File has no extension")
		case !containsFold(cfg.AllowedExtensions, ext):
			res.Errors = append(res.Errors, fmt.Sprintf("File extension %q is not allowed", "."+ext))
		}
	}

	if cfg.CheckMagicBytes && len(res.Errors) == 0 && !MatchesSignature(f.Data, f.MIMEType) {
		res.Errors = append(res.Errors, "File signature does not match declared MIME type (possible file type spoofing)")
	}

	if len(res.Errors) == 0 {
		res.Errors = append(res.Errors, dangerousContent(f.Data, f.MIMEType)...)
	}

	res.Errors = append(res.Errors, fileNameErrors(f.Name)...)

	if want, ok := mimeExtensions[f.MIMEType]; ok && ext != "" && !slices.Contains(want, ext) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("File extension %q does not match MIME type %q", "."+ext, f.MIMEType))
	}

	if cfg.ScanMalware && len(res.Errors) == 0 {
		v.scan(ctx, f, &res)
	}

	if len(res.Errors) > 0 {
		v.logger.Info("upload rejected", "name", f.Name, "mime", f.MIMEType, "size", size, "errors", len(res.Errors))
		return res
	}

	res.Valid = true
	res.File = &FileInfo{
		OriginalName:  f.Name,
		SanitizedName: SanitizeFileName(f.Name),
		Size:          size,
		MIMEType:      f.MIMEType,
		Extension:     ext,
		SHA256:        util.SHA256Hex(f.Data),
	}
	return res
}

// ValidateFiles validates each file independently. The batch is valid only
// when every file is.
func (v *Validator) ValidateFiles(ctx context.Context, files []File, cfg Config) BatchResult {
	out := BatchResult{Valid: len(files) > 0, Results: make([]Result, 0, len(files))}
	for _, f := range files {
		r := v.Validate(ctx, f, cfg)
		if !r.Valid {
			out.Valid = false
		}
		out.Results = append(out.Results, r)
	}
	return out
}

func (v *Validator) scan(ctx context.Context, f File, res *Result) {
	if v.scanner == nil {
		res.Warnings = append(res.Warnings, ScanNotConfigured)
		return
	}
	verdict, err := v.scanner.Scan(ctx, f.Name, f.Data)
	if err != nil {
		v.logger.Warn("malware scan failed", "name", f.Name, "error", err)
		res.Warnings = append(res.Warnings, "malware scan failed; file was not scanned")
		return
	}
	if verdict.Infected {
		threat := verdict.Threat
		if threat == "" {
			threat = "unknown threat"
		}
		v.logger.Warn("malware detected", "name", f.Name, "threat", threat)
		res.Errors = append(res.Errors, fmt.Sprintf("File failed malware scan: %s", threat))
	}
}

// executableExtensions are refused whatever the profile allows.
var executableExtensions = []string{
	"exe", "com", "bat", "cmd", "sh", "bash", "ps1", "app", "deb", "rpm",
	"dmg", "pkg", "dll", "so", "jar", "js", "jsx", "ts", "tsx", "php",
	"asp", "aspx", "jsp", "py", "rb", "pl", "cgi",
}

// hiddenExtensions are refused anywhere before the final extension, as in
// "shell.php.jpg". Kept narrower than executableExtensions so names such as
// "example.com.pdf" still pass.
var hiddenExtensions = []string{
	"php", "phtml", "asp", "aspx", "jsp", "cgi", "pl", "py", "rb", "sh",
	"exe", "bat", "cmd", "ps1", "dll", "jar",
}

func fileNameErrors(name string) []string {
	var errs []string
	if strings.ContainsRune(name, 0) {
		errs = append(errs, "File name contains a null byte")
	}
	if strings.Contains(name, "../") || strings.Contains(name, `..\`) {
		errs = append(errs, "File name contains a path traversal sequence")
	}

	base := strings.ToLower(path.Base(strings.ReplaceAll(name, `\`, "/")))
	if parts := strings.Split(base, "."); len(parts) > 2 {
		for _, inner := range parts[1 : len(parts)-1] {
			if slices.Contains(hiddenExtensions, inner) {
				errs = append(errs, fmt.Sprintf("File name hides a %q extension (double extension)", "."+inner))
				break
			}
		}
	}
	if ext := Extension(name); slices.Contains(executableExtensions, ext) {
		errs = append(errs, fmt.Sprintf("Executable file type %q is not allowed", "."+ext))
	}
	return errs
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimPrefix(v, "."), s) {
			return true
		}
	}
	return false
}
