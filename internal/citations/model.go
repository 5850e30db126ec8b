package citations

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
)

var (
	// ErrSourceExclusivity indicates that a citation named both or neither of its possible sources.
	ErrSourceExclusivity = errors.New("citations: exactly one of contributionId or clusterId is required")
	// ErrSourceNotFound indicates that the cited contribution or cluster does not exist.
	ErrSourceNotFound = errors.New("citations: source not found")
	// ErrVersionMismatch indicates that the cited version does not belong to the given document type.
	ErrVersionMismatch = errors.New("citations: version does not belong to document type")
)

// Citation links a document version, optionally a section of it, to the contribution or cluster behind it.
type Citation struct {
	ID             string         `gorm:"column:id;primaryKey;size:36;not null"`
	ContributionID *string        `gorm:"column:contribution_id;size:36;index"`
	ClusterID      *string        `gorm:"column:cluster_id;size:36;index"`
	VersionType    documents.Type `gorm:"column:version_type;size:32;not null;index:idx_citations_version,priority:1"`
	VersionID      string         `gorm:"column:version_id;size:36;not null;index:idx_citations_version,priority:2"`
	SectionID      *string        `gorm:"column:section_id;size:190"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Citation) TableName() string {
	return "citations"
}

// CreateRequest describes a new citation. Exactly one of ContributionID and ClusterID must be set.
type CreateRequest struct {
	ContributionID string
	ClusterID      string
	VersionType    string
	VersionID      string
	SectionID      string
}

// View is a citation joined with a display-ready description of its source.
type View struct {
	Citation
	ContributionContent *string
	ContributionType    *string
	ContributorName     *string
	IsAnonymous         bool
	ClusterName         *string
	ClusterSummary      *string
}
