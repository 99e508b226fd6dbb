package assets

import (
	"fmt"
	"time"
)

// Record is the persisted description of one asset. The record store owns
// it; the lifecycle manager only mutates the derived fields.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Repository string `json:"repository"`
	// Path is assigned by the lifecycle manager and is always PrimaryPath(ID, Subtype).
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Subtype      string    `json:"subtype"`
	Size         int64     `json:"size"`
	HasThumbnail bool      `json:"hasThumbnail"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Duration     float64   `json:"duration,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MimeType returns the record's full MIME type.
func (r *Record) MimeType() string {
	if r.Type == "" {
		return "application/octet-stream"
	}
	return r.Type + "/" + r.Subtype
}

// Resolution returns "WxH", or an empty string when unknown.
func (r *Record) Resolution() string {
	if r.Width <= 0 || r.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Kind classifies the record for thumbnail and probe decisions.
func (r *Record) Kind() Kind {
	return KindOf(r.Type)
}

// UploadedFile is a temporary on-disk upload produced by the upload layer.
// The lifecycle manager consumes it and removes TempPath afterwards.
type UploadedFile struct {
	TempPath     string
	MimeType     string
	Size         int64
	OriginalName string
}

// Metadata is the result of probing a media stream. Zero values mean unknown.
type Metadata struct {
	Width    int
	Height   int
	Duration float64
	Size     int64
}

// IsEmpty reports whether nothing was learned from the probe.
func (m Metadata) IsEmpty() bool {
	return m.Width == 0 && m.Height == 0 && m.Duration == 0 && m.Size == 0
}

// PrimaryPath returns the repository-relative path of an asset's primary file.
func PrimaryPath(id, subtype string) string {
	return id + "." + subtype
}

// ThumbnailName returns the file name of an asset's thumbnail inside the
// thumbnail directory. ext includes its leading dot.
func ThumbnailName(id, ext string) string {
	return id + ext
}
