package contributions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
)

// TargetType names what a contribution is about.
type TargetType string

const (
	TargetPositioning TargetType = "positioning"
	TargetCompetitors TargetType = "competitors"
	TargetContent     TargetType = "content"
)

// ContributionType classifies the insight.
type ContributionType string

const (
	TypeIntel      ContributionType = "intel"
	TypeSuggestion ContributionType = "suggestion"
	TypeQuestion   ContributionType = "question"
	TypeCorrection ContributionType = "correction"
)

// Status is the review state of a contribution.
//
//	pending -> approved | rejected | clustered
//	auto_published is assigned at creation and never changes
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusClustered     Status = "clustered"
	StatusAutoPublished Status = "auto_published"
)

var (
	ErrInvalidTargetType       = errors.New("contributions: invalid target type")
	ErrInvalidContributionType = errors.New("contributions: invalid contribution type")
	ErrInvalidStatus           = errors.New("contributions: invalid status")
	ErrNotPending              = errors.New("contributions: contribution is not pending")
	ErrContributionNotFound    = errors.New("contributions: contribution not found")
	ErrClusterNotFound         = errors.New("contributions: cluster not found")
	ErrClusterTooSmall         = errors.New("contributions: a cluster needs at least 2 contributions")
)

// ParseTargetType validates raw input and returns a TargetType.
func ParseTargetType(raw string) (TargetType, error) {
	switch TargetType(strings.ToLower(strings.TrimSpace(raw))) {
	case TargetPositioning:
		return TargetPositioning, nil
	case TargetCompetitors:
		return TargetCompetitors, nil
	case TargetContent:
		return TargetContent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetType, raw)
	}
}

// DocumentType reports the versioned document behind the target, if any.
func (target TargetType) DocumentType() (documents.Type, bool) {
	switch target {
	case TargetPositioning:
		return documents.TypePositioning, true
	case TargetCompetitors:
		return documents.TypeCompetitors, true
	default:
		return "", false
	}
}

// ParseContributionType validates raw input and returns a ContributionType.
func ParseContributionType(raw string) (ContributionType, error) {
	switch ContributionType(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeIntel:
		return TypeIntel, nil
	case TypeSuggestion:
		return TypeSuggestion, nil
	case TypeQuestion:
		return TypeQuestion, nil
	case TypeCorrection:
		return TypeCorrection, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContributionType, raw)
	}
}

// ParseStatus validates raw input and returns a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusClustered:
		return StatusClustered, nil
	case StatusAutoPublished:
		return StatusAutoPublished, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Contribution is a user-submitted insight against a document or section.
type Contribution struct {
	ID               string           `gorm:"column:id;primaryKey;size:36;not null"`
	UserID           string           `gorm:"column:user_id;size:190;not null;index"`
	TargetType       TargetType       `gorm:"column:target_type;size:32;not null;index"`
	TargetSection    *string          `gorm:"column:target_section;size:190"`
	ContributionType ContributionType `gorm:"column:contribution_type;size:32;not null"`
	Content          string           `gorm:"column:content;type:text;not null"`
	IsAnonymous      bool             `gorm:"column:is_anonymous;not null"`
	Status           Status           `gorm:"column:status;size:32;not null;index"`
	ReviewerID       *string          `gorm:"column:reviewer_id;size:190"`
	ReviewNotes      *string          `gorm:"column:review_notes;type:text"`
	ClusterID        *string          `gorm:"column:cluster_id;size:36"`
	CreatedAt        time.Time        `gorm:"column:created_at;not null"`
	ReviewedAt       *time.Time       `gorm:"column:reviewed_at"`
}

// TableName provides the explicit table binding for GORM.
func (Contribution) TableName() string {
	return "contributions"
}

// Cluster groups related pending contributions under one summary.
type Cluster struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name      *string   `gorm:"column:name;size:190"`
	Summary   string    `gorm:"column:summary;type:text;not null"`
	CreatedBy string    `gorm:"column:created_by;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Cluster) TableName() string {
	return "contribution_clusters"
}

// ClusterMember records one contribution's membership. A contribution joins at most one cluster.
type ClusterMember struct {
	ClusterID      string `gorm:"column:cluster_id;primaryKey;size:36;not null"`
	ContributionID string `gorm:"column:contribution_id;primaryKey;size:36;not null;uniqueIndex"`
}

// TableName provides the explicit table binding for GORM.
func (ClusterMember) TableName() string {
	return "contribution_cluster_members"
}

// View is a contribution ready for display. ContributorName is nil for anonymous contributions.
type View struct {
	Contribution
	ContributorName *string
}

// ClusterDetail is a cluster together with its member contributions.
type ClusterDetail struct {
	Cluster       Cluster
	Contributions []View
}

// CreateRequest describes a new contribution.
type CreateRequest struct {
	UserID           string
	TargetType       string
	TargetSection    string
	ContributionType string
	Content          string
	IsAnonymous      bool
}

// ListView selects one of the contribution listings.
type ListView string

const (
	ViewMine              ListView = "my"
	ViewPending           ListView = "pending"
	ViewAll               ListView = "all"
	ViewApprovedForTarget ListView = "approved-for-target"
)

// ListQuery parameterises List.
type ListQuery struct {
	View       ListView
	UserID     string
	IsAdmin    bool
	TargetType string
	Status     string
}

// Actor identifies the caller of an ownership-checked operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// ReviewRequest is an admin decision on a pending contribution.
type ReviewRequest struct {
	ContributionID string
	ReviewerID     string
	Status         string
	ReviewNotes    string
}

// ReviewResult carries the reviewed contribution and, for approvals of document targets,
// the version and citation created with it.
type ReviewResult struct {
	Contribution View
	Version      *documents.Version
	Citation     *citations.Citation
}

// ClusterRequest describes a new cluster.
type ClusterRequest struct {
	Name            string
	Summary         string
	ContributionIDs []string
	CreatedBy       string
}
