package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Type enumerates the versioned documents.
type Type string

const (
	// TypePositioning is the positioning and messaging framework.
	TypePositioning Type = "positioning"
	// TypeCompetitors is the competitive battlecard.
	TypeCompetitors Type = "competitors"
)

// Source labels how a version came to exist.
type Source string

const (
	SourceEdit    Source = "edit"
	SourceRestore Source = "restore"
	SourceReview  Source = "review"
)

var (
	// ErrUnknownDocumentType indicates a document type outside the supported set.
	ErrUnknownDocumentType = errors.New("documents: unknown document type")
	// ErrVersionNotFound indicates that the requested version does not exist.
	ErrVersionNotFound = errors.New("documents: version not found")
	// ErrInvalidVersionNumber indicates a non-positive version number.
	ErrInvalidVersionNumber = errors.New("documents: invalid version number")
)

// ParseType validates raw input and returns a Type.
func ParseType(rawInput string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(rawInput))) {
	case TypePositioning:
		return TypePositioning, nil
	case TypeCompetitors:
		return TypeCompetitors, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, rawInput)
	}
}

// String returns the stored representation.
func (t Type) String() string {
	return string(t)
}

// Head is the per-document counter row that serializes version allocation.
type Head struct {
	DocumentType   Type  `gorm:"column:document_type;primaryKey;size:32;not null"`
	CurrentVersion int64 `gorm:"column:current_version;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Head) TableName() string {
	return "document_heads"
}

// Version is one immutable snapshot of a document payload.
type Version struct {
	ID            string         `gorm:"column:id;primaryKey;size:36;not null"`
	DocumentType  Type           `gorm:"column:document_type;size:32;not null;uniqueIndex:idx_document_versions_type_number,priority:1"`
	VersionNumber int64          `gorm:"column:version_number;not null;uniqueIndex:idx_document_versions_type_number,priority:2"`
	Data          datatypes.JSON `gorm:"column:data;not null"`
	ChangeNotes   *string        `gorm:"column:change_notes;type:text"`
	CreatedBy     *string        `gorm:"column:created_by;size:190"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Version) TableName() string {
	return "document_versions"
}

// Payload decodes the stored data into the tagged document shape.
func (v Version) Payload() (Payload, error) {
	return DecodePayload(v.DocumentType, v.Data)
}

// VersionSummary is the list-view projection of a Version without its payload.
type VersionSummary struct {
	ID            string
	DocumentType  Type
	VersionNumber int64
	ChangeNotes   *string
	CreatedBy     *string
	CreatedAt     time.Time
}

// Snapshot is the current state of a document.
type Snapshot struct {
	DocumentType  Type
	Payload       Payload
	VersionID     string
	VersionNumber int64
	CreatedAt     *time.Time
}

// SaveRequest describes a version append.
type SaveRequest struct {
	DocumentType Type
	Payload      Payload
	ChangeNotes  string
	CreatedBy    string
	Source       Source
}
