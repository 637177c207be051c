package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"uppercase extension", "Scan.PDF", "Scan.PDF"},
		{"spaces and symbols", "  my report (final)!.pdf ", "my_report__final__.pdf"},
		{"path traversal", "../../etc/passwd.pdf", "etc.passwd.pdf"},
		{"dot runs", "a...b..pdf", "a.b.pdf"},
		{"hidden file", ".hidden.pdf", "hidden.pdf"},
		{"windows path", `C:\docs\a.pdf`, "C_.docs.a.pdf"},
		{"unicode", "résumé.pdf", "r_sum_.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, `\`)
			assert.NotContains(t, got, "..")
			assert.False(t, strings.HasPrefix(got, "."))
		})
	}
}

func TestSanitizeFilename_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", ".pdf", "../.pdf", "report.pdf.", "notes.txt", "archive.pdf.zip", "noextension"} {
		_, err := SanitizeFilename(in)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "input %q", in)
	}
}

func TestSanitizeFilename_TruncatesKeepingExtension(t *testing.T) {
	got, err := SanitizeFilename(strings.Repeat("a", 400) + ".pdf")
	require.NoError(t, err)
	assert.Len(t, got, 255)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestSanitizeFilename_TruncationDropsTrailingDot(t *testing.T) {
	got, err := SanitizeFilename(strings.Repeat("a", 250) + ".b" + strings.Repeat("c", 100) + ".pdf")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 250)+".pdf", got)
}

func TestSanitizeFilename_Idempotent(t *testing.T) {
	for _, in := range []string{
		"../../etc/passwd.pdf",
		"a b c.pdf",
		strings.Repeat("x", 300) + ".pdf",
		strings.Repeat("a", 250) + ".b" + strings.Repeat("c", 100) + ".pdf",
		"ü/ö.pdf",
	} {
		once, err := SanitizeFilename(in)
		require.NoError(t, err)
		twice, err := SanitizeFilename(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}
