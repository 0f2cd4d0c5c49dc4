// utils/validation.go
package utils

import (
	"errors"
	"html"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode"
)

// Allowed image extensions for uploads
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// IsValidImageFile checks if the uploaded file is a valid image
func IsValidImageFile(file *multipart.FileHeader) bool {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	return allowedImageExts[ext]
}

// SanitizeInput sanitizes user input to prevent XSS and injection attacks
func SanitizeInput(input string) string {
	// Trim spaces
	input = strings.TrimSpace(input)

	// HTML escape
	input = html.EscapeString(input)

	// Remove control characters
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	return input
}

// SanitizeEmail normalizes an email address so the same mailbox always maps
// to the same store keys. Format validation happens at request binding.
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateImageUpload validates an uploaded image's size and type
func ValidateImageUpload(file *multipart.FileHeader) error {
	// 5MB limit
	if file.Size > 5*1024*1024 {
		return errors.New("file too large, maximum size is 5MB")
	}

	if !IsValidImageFile(file) {
		return errors.New("unsupported image format, allowed formats: jpg, jpeg, png, gif")
	}

	return nil
}
