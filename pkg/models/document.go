package models

import "time"

// Supported document file types.
const (
	FileTypePDF  = "pdf"
	FileTypeTXT  = "txt"
	FileTypeDOCX = "docx"
)

// Document is an uploaded file owned by a user. Processed flips to true once
// the document's chunks are extracted and indexed.
type Document struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	FileType  string    `json:"file_type"` // 'pdf', 'txt', 'docx'
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// IsValidFileType checks if the given file type is supported.
func IsValidFileType(fileType string) bool {
	switch fileType {
	case FileTypePDF, FileTypeTXT, FileTypeDOCX:
		return true
	}
	return false
}
