package upload_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/upload"
)

var (
	pngBytes  = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R', 0xff)
	jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	pdfBytes  = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")
)

func newValidator(opts ...upload.Option) *upload.Validator {
	opts = append([]upload.Option{upload.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return upload.NewValidator(opts...)
}

func TestValidateAcceptsImage(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{Name: "Logo Final.PNG", MIMEType: upload.MIMEPNG, Data: pngBytes}, upload.ImageProfile())

	require.True(t, res.Valid, res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.File)
	assert.Equal(t, "Logo Final.PNG", res.File.OriginalName)
	assert.Equal(t, "Logo Final.PNG", res.File.SanitizedName)
	assert.Equal(t, "png", res.File.Extension)
	assert.Equal(t, int64(len(pngBytes)), res.File.Size)
	assert.Len(t, res.File.SHA256, 64)
}

func TestValidateRejectsSpoofedSignature(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{Name: "evil.png", MIMEType: upload.MIMEPNG, Data: pdfBytes}, upload.ImageProfile())

	assert.False(t, res.Valid)
	assert.Nil(t, res.File)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "spoofing")
}

func TestValidateEmptyFile(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{Name: "a.png", MIMEType: upload.MIMEPNG}, upload.ImageProfile())

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"File is empty"}, res.Errors)
}

func TestValidateSizeLimit(t *testing.T) {
	v := newValidator()
	cfg := upload.Config{MaxSize: 10}
	res := v.Validate(context.Background(), upload.File{Name: "a.txt", MIMEType: upload.MIMEText, Data: []byte("hello world")}, cfg)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"File size (11 B) exceeds 10 B limit"}, res.Errors)
}

func TestValidateCollectsErrors(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{
		Name:     "setup.exe",
		MIMEType: "application/x-msdownload",
		Data:     []byte("MZ\x90\x00"),
	}, upload.ImageProfile())

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "application/x-msdownload")
	assert.Contains(t, res.Errors[1], ".exe")
	assert.Contains(t, res.Errors[2], "Executable file type")
}

func TestValidateRejectsExecutableExtensions(t *testing.T) {
	v := newValidator()
	cfg := upload.Config{MaxSize: 1 << 20}
	for _, name := range []string{"setup.exe", "run.SH", "deploy.ps1", "index.php", "app.jar", "handler.py"} {
		t.Run(name, func(t *testing.T) {
			res := v.Validate(context.Background(), upload.File{Name: name, MIMEType: "application/octet-stream", Data: []byte("payload")}, cfg)
			assert.False(t, res.Valid)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], "Executable file type")
		})
	}
}

func TestValidateRejectsDoubleExtensions(t *testing.T) {
	v := newValidator()
	for _, name := range []string{"shell.php.jpg", "image.PHP.jpeg", "backdoor.asp.jpg", "virus.exe.jpg"} {
		t.Run(name, func(t *testing.T) {
			res := v.Validate(context.Background(), upload.File{Name: name, MIMEType: upload.MIMEJPEG, Data: jpegBytes}, upload.ImageProfile())
			assert.False(t, res.Valid)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], "double extension")
		})
	}

	res := v.Validate(context.Background(), upload.File{Name: "example.com.jpg", MIMEType: upload.MIMEJPEG, Data: jpegBytes}, upload.ImageProfile())
	assert.True(t, res.Valid, res.Errors)
}

func TestValidateMissingExtension(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{Name: "README", MIMEType: upload.MIMEText, Data: []byte("hi")}, upload.DocumentProfile())

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "File has no extension")
}

func TestValidateExtensionCaseInsensitive(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{Name: "PHOTO.JPG", MIMEType: upload.MIMEJPEG, Data: jpegBytes}, upload.ImageProfile())
	assert.True(t, res.Valid, res.Errors)
}

func TestValidateDangerousContent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"script", `<svg xmlns="http://www.w3.org/2000/svg"><SCRIPT>alert(1)</SCRIPT></svg>`, "script tag"},
		{"data uri", `<svg><image href="data:image/png;base64,AAAA"/></svg>`, "data: URI"},
		{"external", `<svg><use xlink:href="https://evil.example/x.svg#a"/></svg>`, "external resource"},
		{"eval", `<svg><a onclick="eval(atob('x'))"/></svg>`, "eval()"},
		{"php", `<?php system($_GET['c']); ?>`, "PHP"},
	}
	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(context.Background(), upload.File{Name: "icon.svg", MIMEType: upload.MIMESVG, Data: []byte(tt.data)}, upload.ImageProfile())
			assert.False(t, res.Valid)
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, strings.Join(res.Errors, "\n"), tt.want)
		})
	}
}

func TestValidateCleanSVG(t *testing.T) {
	v := newValidator()
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`
	res := v.Validate(context.Background(), upload.File{Name: "icon.svg", MIMEType: upload.MIMESVG, Data: []byte(svg)}, upload.ImageProfile())
	assert.True(t, res.Valid, res.Errors)
}

func TestValidateFileNameHygiene(t *testing.T) {
	v := newValidator()
	cfg := upload.Config{}

	res := v.Validate(context.Background(), upload.File{Name: "../../etc/passwd", MIMEType: upload.MIMEText, Data: []byte("root")}, cfg)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "File name contains a path traversal sequence")

	res = v.Validate(context.Background(), upload.File{Name: `..\..\boot.ini`, MIMEType: upload.MIMEText, Data: []byte("x")}, cfg)
	assert.Contains(t, res.Errors, "File name contains a path traversal sequence")

	res = v.Validate(context.Background(), upload.File{Name: "a.txt\x00.png", MIMEType: upload.MIMEText, Data: []byte("x")}, cfg)
	assert.Contains(t, res.Errors, "File name contains a null byte")
}

func TestValidateMIMEExtensionMismatchWarns(t *testing.T) {
	v := newValidator()
	res := v.Validate(context.Background(), upload.File{Name: "photo.png", MIMEType: upload.MIMEJPEG, Data: jpegBytes}, upload.Config{CheckMagicBytes: true})

	assert.True(t, res.Valid, res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "does not match")
}

func TestValidateMalwareScan(t *testing.T) {
	doc := upload.File{Name: "notes.txt", MIMEType: upload.MIMEText, Data: []byte("quarterly numbers")}

	t.Run("not configured", func(t *testing.T) {
		res := newValidator().Validate(context.Background(), doc, upload.DocumentProfile())
		assert.True(t, res.Valid)
		assert.Equal(t, []string{upload.ScanNotConfigured}, res.Warnings)
	})

	t.Run("infected", func(t *testing.T) {
		scanner := upload.ScannerFunc(func(context.Context, string, []byte) (upload.ScanResult, error) {
			return upload.ScanResult{Infected: true, Threat: "EICAR-Test-File"}, nil
		})
		res := newValidator(upload.WithScanner(scanner)).Validate(context.Background(), doc, upload.DocumentProfile())
		assert.False(t, res.Valid)
		assert.Equal(t, []string{"File failed malware scan: EICAR-Test-File"}, res.Errors)
	})

	t.Run("scanner failure", func(t *testing.T) {
		scanner := upload.ScannerFunc(func(context.Context, string, []byte) (upload.ScanResult, error) {
			return upload.ScanResult{}, errors.New("clamd unreachable")
		})
		res := newValidator(upload.WithScanner(scanner)).Validate(context.Background(), doc, upload.DocumentProfile())
		assert.True(t, res.Valid)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("clean", func(t *testing.T) {
		var scanned string
		scanner := upload.ScannerFunc(func(_ context.Context, name string, _ []byte) (upload.ScanResult, error) {
			scanned = name
			return upload.ScanResult{}, nil
		})
		res := newValidator(upload.WithScanner(scanner)).Validate(context.Background(), doc, upload.DocumentProfile())
		assert.True(t, res.Valid)
		assert.Empty(t, res.Warnings)
		assert.Equal(t, "notes.txt", scanned)
	})
}

func TestValidateFiles(t *testing.T) {
	v := newValidator()
	batch := v.ValidateFiles(context.Background(), []upload.File{
		{Name: "a.png", MIMEType: upload.MIMEPNG, Data: pngBytes},
		{Name: "b.png", MIMEType: upload.MIMEPNG, Data: pdfBytes},
	}, upload.ImageProfile())

	assert.False(t, batch.Valid)
	require.Len(t, batch.Results, 2)
	assert.True(t, batch.Results[0].Valid)
	assert.False(t, batch.Results[1].Valid)

	assert.False(t, v.ValidateFiles(context.Background(), nil, upload.ImageProfile()).Valid)
}
