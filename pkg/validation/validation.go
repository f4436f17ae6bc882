package validation

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrInvalidPartNumber = errors.New("invalid part number")
	ErrInvalidFileName   = errors.New("invalid file name")

	partNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

// ValidatePartNumber trims the part number and checks that it is usable as a
// single object key segment. An empty part number is valid and means none.
func ValidatePartNumber(partNumber string) (string, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return "", nil
	}
	if !partNumberRegex.MatchString(partNumber) {
		return "", ErrInvalidPartNumber
	}
	return partNumber, nil
}

// SanitizeFileName reduces a client supplied name to its base name.
func SanitizeFileName(name string) (string, error) {
	name = SanitizeString(strings.ReplaceAll(name, `\`, "/"))
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", ErrInvalidFileName
	}
	return base, nil
}

// SanitizeString removes potentially harmful characters
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
