package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeValid(t *testing.T) {
	tests := []struct {
		name        string
		contentType ContentType
		valid       bool
	}{
		{"svg", ContentTypeSVG, true},
		{"pdf", ContentTypePDF, true},
		{"png", ContentType("image/png"), false},
		{"empty", ContentType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.contentType.Valid())
		})
	}
}

func TestContentTypeExtension(t *testing.T) {
	assert.Equal(t, ".svg", ContentTypeSVG.Extension())
	assert.Equal(t, ".pdf", ContentTypePDF.Extension())
	assert.Equal(t, ".bin", ContentType("text/plain").Extension())
}

func TestContentTypeForExtension(t *testing.T) {
	ct, ok := ContentTypeForExtension(".svg")
	assert.True(t, ok)
	assert.Equal(t, ContentTypeSVG, ct)

	ct, ok = ContentTypeForExtension(".pdf")
	assert.True(t, ok)
	assert.Equal(t, ContentTypePDF, ct)

	_, ok = ContentTypeForExtension(".png")
	assert.False(t, ok)
}

func TestExtensionRoundTrip(t *testing.T) {
	for _, ext := range ArtifactExtensions {
		ct, ok := ContentTypeForExtension(ext)
		assert.True(t, ok, "extension %s must map to a content type", ext)
		assert.Equal(t, ext, ct.Extension())
	}
}
