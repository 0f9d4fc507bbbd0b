package media

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// MaxUploadBytes is the hard cap on a single media object.
const MaxUploadBytes int64 = 100 * 1024 * 1024

var (
	ErrUnsupportedMIME      = errors.New("unsupported mime type")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrTooLarge             = errors.New("file exceeds 100 MB limit")
)

// Modality is the processing family a MIME type belongs to.
type Modality int

const (
	ModalityUnknown Modality = iota
	ModalityText
	ModalityImage
	ModalityAudio
	ModalityVideo
)

func (m Modality) String() string {
	switch m {
	case ModalityText:
		return "text"
	case ModalityImage:
		return "image"
	case ModalityAudio:
		return "audio"
	case ModalityVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ModalityForMIME maps a MIME type to its modality by top-level type.
func ModalityForMIME(mimeType string) Modality {
	mt := normalizeMIME(mimeType)
	switch {
	case strings.HasPrefix(mt, "text/"):
		return ModalityText
	case strings.HasPrefix(mt, "image/"):
		return ModalityImage
	case strings.HasPrefix(mt, "audio/"):
		return ModalityAudio
	case strings.HasPrefix(mt, "video/"):
		return ModalityVideo
	default:
		return ModalityUnknown
	}
}

var supportedMIMETypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"audio/mpeg":      ".mp3",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"text/plain":      ".txt",
	"text/markdown":   ".md",
}

var supportedExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mp3": {}, ".wav": {}, ".png": {},
	".jpg": {}, ".jpeg": {}, ".webp": {}, ".txt": {}, ".md": {},
}

// IsSupportedMIME reports whether mimeType is accepted for upload and extraction.
func IsSupportedMIME(mimeType string) bool {
	_, ok := supportedMIMETypes[normalizeMIME(mimeType)]
	return ok
}

// ExtensionForMIME returns the temp-file extension for a MIME type, ".bin" when unknown.
func ExtensionForMIME(mimeType string) string {
	if ext, ok := supportedMIMETypes[normalizeMIME(mimeType)]; ok {
		return ext
	}
	return ".bin"
}

func ValidateUploadSize(n int64) error {
	if n > MaxUploadBytes {
		return fmt.Errorf("%w (%d bytes)", ErrTooLarge, n)
	}
	return nil
}

// ValidateFileType checks the MIME type and, when present, the file extension.
func ValidateFileType(fileName, mimeType string) error {
	if !IsSupportedMIME(mimeType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedMIME, mimeType)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return nil
	}
	if _, ok := supportedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
	}
	return nil
}

// BuildObjectKey names an uploaded object: profiles/{pid}/{pid}_{objectID}_{basename}.
func BuildObjectKey(profileID, fileName, objectID string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	return fmt.Sprintf("profiles/%s/%s_%s_%s", profileID, profileID, objectID, base)
}

func normalizeMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
