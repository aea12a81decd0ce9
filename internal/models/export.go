package models

import "time"

// ExportStatus is the lifecycle state of an export run.
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportRendering ExportStatus = "rendering"
	ExportReady     ExportStatus = "ready"
	ExportFailed    ExportStatus = "failed"
)

// ExportFormat is the raster encoding of the produced stills.
type ExportFormat string

const (
	FormatPNG ExportFormat = "png"
	FormatJPG ExportFormat = "jpg"
)

// ExportSize is one of the fixed output dimensions offered to clients.
type ExportSize struct {
	Width  int
	Height int
}

// AllowedSizes is the closed set of output dimensions.
var AllowedSizes = []ExportSize{
	{1080, 1080},
	{1080, 1350},
	{1080, 1920},
}

func (s ExportSize) Valid() bool {
	for _, a := range AllowedSizes {
		if a == s {
			return true
		}
	}
	return false
}

// ExportRun is one export attempt for one carousel. Owned by the
// orchestrator; read-only everywhere else.
type ExportRun struct {
	ID         string
	OwnerID    string
	CarouselID string
	Format     ExportFormat
	Size       ExportSize
	Status     ExportStatus
	// ArchiveKey is the storage key of the final zip; set only when ready.
	ArchiveKey string
	// ErrorText is a short human-readable cause; set only when failed.
	ErrorText  string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
