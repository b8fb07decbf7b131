package storage

import (
	"path/filepath"
	"strings"

	"flipside/internal/pkg/errs"
)

const (
	// MaxPhotoSizeMB is the maximum allowed photo size in megabytes.
	MaxPhotoSizeMB = 5

	// MaxPhotoSize is the maximum allowed photo size in bytes.
	MaxPhotoSize = MaxPhotoSizeMB * 1024 * 1024
)

// extToMIME maps the accepted file extensions to their MIME types.
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if fileSize > MaxPhotoSize {
		return errs.NewError(errs.ErrFileTooLarge)
	}
	return nil
}

// ValidateFileType checks that the MIME type is an accepted image type and
// agrees with the file extension.
func ValidateFileType(fileName, mimeType string) *errs.CustomError {
	ext := strings.ToLower(filepath.Ext(fileName))

	expected, ok := extToMIME[ext]
	if !ok || expected != strings.ToLower(mimeType) {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}
