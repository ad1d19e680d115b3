package ingest

import (
	"strings"
	"testing"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		fileName string
		mimeType string
		want     DocType
		wantErr  bool
	}{
		{"doc.pdf", "", DocTypePDF, false},
		{"doc.bin", "application/pdf", DocTypePDF, false},
		{"page.HTML", "", DocTypeHTML, false},
		{"x", "text/html; charset=utf-8", DocTypeHTML, false},
		{"notes.md", "application/octet-stream", DocTypeText, false},
		{"notes.txt", "", DocTypeText, false},
		{"image.png", "image/png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.fileName+"|"+tt.mimeType, func(t *testing.T) {
			got, err := DetectType(tt.fileName, tt.mimeType)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractHTML(t *testing.T) {
	doc := `<!doctype html>
<html><head><title>Ignored</title><style>p { color: red }</style></head>
<body>
  <script>var secret = "nope";</script>
  <h1>Welcome</h1>
  <p>First   paragraph<br>with a break.</p>
  <ul><li>One</li><li>Two</li></ul>
  <noscript>enable js</noscript>
</body></html>`

	text, err := ExtractHTML(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "Welcome\n\nFirst paragraph\nwith a break.\n\nOne\n\nTwo", text)
	assert.NotContains(t, text, "secret")
	assert.NotContains(t, text, "color")
	assert.NotContains(t, text, "Ignored")
}

func TestExtract_Text(t *testing.T) {
	text, err := Extract([]byte("# Title\n\nSome *markdown*."), "readme.md", "")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nSome *markdown*.", text)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	text, err := Extract([]byte("ok\xffok"), "a.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "okok", text)
}

func TestExtract_BrokenPDF(t *testing.T) {
	_, err := Extract([]byte("not a pdf"), "a.pdf", "application/pdf")
	require.Error(t, err)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract([]byte{0x89, 'P', 'N', 'G'}, "a.png", "image/png")
	require.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}
