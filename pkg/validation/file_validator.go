package validation

import (
	"path/filepath"
	"strings"

	apperrors "go-crop-inspector/internal/errors"
)

// AllowedExtensions lists the accepted upload extensions, lower case and
// without the dot.
var AllowedExtensions = []string{"png", "jpg", "jpeg"}

// IsAllowedImageFile reports whether filename carries an accepted extension.
func IsAllowedImageFile(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ValidateUploadFilename returns an input AppError for empty names and
// disallowed extensions.
func ValidateUploadFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return apperrors.NewInputError("No file selected", nil)
	}
	if !IsAllowedImageFile(filename) {
		return apperrors.NewInputError("File type not allowed. Please upload a PNG, JPG, or JPEG image.", nil)
	}
	return nil
}
