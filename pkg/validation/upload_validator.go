package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/anime-shed/heatmap-inspector/internal/errors"
	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

// DefaultPlaceName is recorded when no place is given.
const DefaultPlaceName = "Unknown"

const maxPlaceNameLength = 200

// DefaultAllowedExtensions are the raster formats accepted for upload.
var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png", "bmp", "tiff"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// UploadValidator checks uploaded file names and the metadata sent with them
type UploadValidator struct {
	allowedExtensions map[string]struct{}
}

// NewUploadValidator creates a validator accepting DefaultAllowedExtensions
func NewUploadValidator() *UploadValidator {
	return NewUploadValidatorWithExtensions(DefaultAllowedExtensions)
}

// NewUploadValidatorWithExtensions creates a validator for the given
// extensions (without the leading dot, any case)
func NewUploadValidatorWithExtensions(exts []string) *UploadValidator {
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return &UploadValidator{allowedExtensions: allowed}
}

// ValidateFilename checks that name has an allowed extension and returns a
// sanitized version of it
func (v *UploadValidator) ValidateFilename(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperrors.NewValidationError("No file selected", nil)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := v.allowedExtensions[ext]; !ok {
		return "", apperrors.NewValidationError("Unsupported file type", nil).
			WithDetails("allowed extensions: " + strings.Join(DefaultAllowedExtensions, ", "))
	}

	safe := SanitizeFilename(name)
	if strings.ToLower(strings.TrimPrefix(filepath.Ext(safe), ".")) != ext || safe == "."+ext {
		return "", apperrors.NewValidationError("Invalid file name", nil)
	}
	return safe, nil
}

// SanitizeFilename reduces name to its base, ASCII letters, digits, "_", "-"
// and ".". Whitespace becomes "_" and leading dots or underscores are dropped.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, "._")
}

// NormalizePlaceName trims and collapses whitespace, defaulting to "Unknown".
// Names longer than 200 runes are rejected.
func NormalizePlaceName(place string) (string, error) {
	place = strings.Join(strings.Fields(place), " ")
	if place == "" {
		return DefaultPlaceName, nil
	}
	if n := utf8.RuneCountInString(place); n > maxPlaceNameLength {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("Place name exceeds %d characters", maxPlaceNameLength), nil).
			WithDetails(fmt.Sprintf("got %d characters", n))
	}
	return place, nil
}

// ResolveDate returns date when it is a valid YYYY-MM-DD value, or now
// formatted that way when date is empty
func ResolveDate(date string, now time.Time) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.Format(models.DateLayout), nil
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", apperrors.NewValidationError("Invalid date, expected YYYY-MM-DD", err)
	}
	return t.Format(models.DateLayout), nil
}
