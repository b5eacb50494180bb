package upload_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/upload"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"my résumé (final).pdf", "my resume final.pdf"},
		{"a...b..pdf", "a.b.pdf"},
		{"../../etc/passwd", "etcpasswd"},
		{"  .hidden. ", "hidden"},
		{"", "file"},
		{"...", "file"},
		{"<>|*?", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, upload.SanitizeFileName(tt.in))
		})
	}
}

func TestSanitizeFileNameCapsLength(t *testing.T) {
	got := upload.SanitizeFileName(strings.Repeat("a", 300) + ".pdf")
	assert.Len(t, got, upload.MaxFileNameLength)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestGenerateSecureFileName(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{13}-[a-z0-9]{8}\.(pdf|bin)$`)

	a, err := upload.GenerateSecureFileName("Quarterly Report.PDF")
	require.NoError(t, err)
	assert.Regexp(t, pattern, a)
	assert.True(t, strings.HasSuffix(a, ".pdf"))

	b, err := upload.GenerateSecureFileName("Quarterly Report.PDF")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, err := upload.GenerateSecureFileName("Makefile")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(c, ".bin"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", upload.Extension("a.PNG"))
	assert.Equal(t, "gz", upload.Extension("backup.tar.gz"))
	assert.Equal(t, "", upload.Extension("README"))
	assert.Equal(t, "", upload.Extension("dir.d/file"))
	assert.Equal(t, "txt", upload.Extension(`C:\Users\me\notes.txt`))
}
