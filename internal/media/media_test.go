package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModalityForMIME(t *testing.T) {
	cases := []struct {
		mime string
		want Modality
	}{
		{"text/plain", ModalityText},
		{"text/markdown; charset=utf-8", ModalityText},
		{"image/webp", ModalityImage},
		{"audio/x-wav", ModalityAudio},
		{"video/quicktime", ModalityVideo},
		{"application/pdf", ModalityUnknown},
		{"", ModalityUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ModalityForMIME(tc.mime), tc.mime)
	}
}

func TestExtensionForMIME(t *testing.T) {
	assert.Equal(t, ".mov", ExtensionForMIME("video/quicktime"))
	assert.Equal(t, ".wav", ExtensionForMIME("audio/x-wav"))
	assert.Equal(t, ".jpg", ExtensionForMIME("image/jpeg"))
	assert.Equal(t, ".bin", ExtensionForMIME("application/zip"))
}

func TestValidateFileType(t *testing.T) {
	require.NoError(t, ValidateFileType("clip.MOV", "video/quicktime"))
	require.NoError(t, ValidateFileType("notes", "text/plain"))

	err := ValidateFileType("doc.pdf", "application/pdf")
	require.ErrorIs(t, err, ErrUnsupportedMIME)
	assert.Contains(t, err.Error(), "application/pdf")

	require.ErrorIs(t, ValidateFileType("photo.gif", "image/png"), ErrUnsupportedExtension)
}

func TestValidateUploadSize(t *testing.T) {
	require.NoError(t, ValidateUploadSize(MaxUploadBytes))
	require.ErrorIs(t, ValidateUploadSize(MaxUploadBytes+1), ErrTooLarge)
}

func TestBuildObjectKey(t *testing.T) {
	got := BuildObjectKey("p1", "../../etc/grandma.mp4", "abc")
	assert.Equal(t, "profiles/p1/p1_abc_grandma.mp4", got)
}
