package utils

import (
	"fmt"
	"image"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// Base directory for storing uploaded files
	uploadBaseDir = "uploads"
	// Base URL for serving files
	baseURL = "/uploads"
	// Uploaded images are shrunk to fit inside this bound, matching the
	// 500x500 limit the hosted media pipeline applied.
	maxImageDimension = 500
)

// InitializeStorage creates the directories for file storage
func InitializeStorage() error {
	dirs := []string{
		uploadBaseDir,
		filepath.Join(uploadBaseDir, "profiles"),
		filepath.Join(uploadBaseDir, "categories"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	return nil
}

// SaveImage validates, resizes, and stores an uploaded image in the given
// subdirectory. It returns the URL the image is served under.
func SaveImage(file *multipart.FileHeader, subDir string) (string, error) {
	if err := ValidateImageUpload(file); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %v", err)
	}
	defer src.Close()

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %v", err)
	}

	// Shrink to fit the dimension bound while keeping the aspect ratio.
	// Smaller images are stored as-is.
	bounds := img.Bounds()
	if bounds.Dx() > maxImageDimension || bounds.Dy() > maxImageDimension {
		img = imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), normalizedExt(file.Filename))
	fullPath := filepath.Join(uploadBaseDir, subDir, filename)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %v", err)
	}

	if err := saveByExt(img, fullPath); err != nil {
		return "", fmt.Errorf("failed to save image: %v", err)
	}

	return fmt.Sprintf("%s/%s/%s", baseURL, subDir, filename), nil
}

// DeleteImage removes a previously stored image given its serving URL.
// Missing files are not an error.
func DeleteImage(url string) error {
	if url == "" || !strings.HasPrefix(url, baseURL+"/") {
		return nil
	}
	fullPath := filepath.Join(uploadBaseDir, strings.TrimPrefix(url, baseURL+"/"))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func normalizedExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext
}

func saveByExt(img image.Image, fullPath string) error {
	switch filepath.Ext(fullPath) {
	case ".jpg":
		return imaging.Save(img, fullPath, imaging.JPEGQuality(85))
	default:
		return imaging.Save(img, fullPath)
	}
}
