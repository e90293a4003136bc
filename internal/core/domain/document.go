package domain

import "time"

// Document is the metadata of an uploaded source file. The bytes live in
// object storage under StoragePath.
type Document struct {
	FileID      string    `json:"file_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
