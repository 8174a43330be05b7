package domain

import "time"

// UploadMetadata describes the work instruction a video belongs to.
type UploadMetadata struct {
	Title     string `json:"title" validate:"required,max=200"`
	PlantUnit string `json:"plantUnit" validate:"required,max=100"`
	Asset     string `json:"asset" validate:"required,max=100"`
	Category  string `json:"category" validate:"required,max=100"`
}

// VideoAsset references the playable media the active chapter collection belongs to.
// Chapter operations never modify it; a new upload replaces it.
type VideoAsset struct {
	ID          string         `json:"id"`
	URL         string         `json:"videoUrl"`
	Filename    string         `json:"filename"`
	StoredName  string         `json:"storedName"`
	LocalPath   string         `json:"localPath"`
	ContentType string         `json:"contentType"`
	Size        int64          `json:"size"`
	Metadata    UploadMetadata `json:"metadata"`
	UploadedAt  time.Time      `json:"uploadedAt"`
}
