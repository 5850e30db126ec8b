package contributions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew    = "contributions.service.new"
	opCreate        = "contributions.create"
	opList          = "contributions.list"
	opDelete        = "contributions.delete"
	opReview        = "contributions.review"
	opCreateCluster = "contributions.create_cluster"
	opGetCluster    = "contributions.get_cluster"

	reasonMissingDatabase     = "missing_database"
	reasonMissingUser         = "missing_user"
	reasonInvalidTarget       = "invalid_target_type"
	reasonInvalidType         = "invalid_contribution_type"
	reasonInvalidStatus       = "invalid_status"
	reasonInvalidView         = "invalid_view"
	reasonEmptyContent        = "empty_content"
	reasonContentTooLong      = "content_too_long"
	reasonSectionTooLong      = "section_too_long"
	reasonNotesTooLong        = "review_notes_too_long"
	reasonAdminRequired       = "admin_required"
	reasonNotOwner            = "not_owner"
	reasonNotPending          = "not_pending"
	reasonNotFound            = "contribution_not_found"
	reasonClusterNotFound     = "cluster_not_found"
	reasonClusterTooSmall     = "cluster_too_small"
	reasonEmptySummary        = "empty_summary"
	reasonNameTooLong         = "name_too_long"
	reasonIDGeneration        = "id_generation_failed"
	reasonInsertFailed        = "insert_failed"
	reasonUpdateFailed        = "update_failed"
	reasonDeleteFailed        = "delete_failed"
	reasonQueryFailed         = "query_failed"
	reasonDirectoryFailed     = "directory_failed"
	reasonTargetTypeRequired  = "target_type_required"
	reasonMissingContribution = "missing_contribution_id"

	fieldContributionID = "contribution_id"
	fieldClusterID      = "cluster_id"

	maxContentLength     = 10000
	maxSectionLength     = 190
	maxReviewNotesLength = 2000
	maxClusterNameLength = 190

	anonymousContributor = "Anonymous"
	orderNewestFirst     = "created_at DESC, id DESC"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingDocuments  = errors.New("document store is required")
	errMissingCitations  = errors.New("citation index is required")
	errMissingUser       = errors.New("user id is required")
	errEmptyContent      = errors.New("content is required")
	errContentTooLong    = fmt.Errorf("content exceeds %d characters", maxContentLength)
	errSectionTooLong    = fmt.Errorf("targetSection exceeds %d characters", maxSectionLength)
	errNotesTooLong      = fmt.Errorf("reviewNotes exceed %d characters", maxReviewNotesLength)
	errNameTooLong       = fmt.Errorf("name exceeds %d characters", maxClusterNameLength)
	errEmptySummary      = errors.New("summary is required")
	errAdminRequired     = errors.New("admin access required")
	errNotOwner          = errors.New("only the author or an admin may delete a contribution")
	errInvalidView       = errors.New("view must be one of my, pending, all, approved-for-target")
	errTargetRequired    = errors.New("targetType is required for approved-for-target")
	errReviewDecision    = errors.New("status must be approved or rejected")
)

// ServiceConfig describes the dependencies of contribution intake and review.
type ServiceConfig struct {
	Database    *gorm.DB
	Documents   *documents.Service
	Citations   *citations.Service
	Directory   users.NameDirectory
	AutoPublish AutoPublishPolicy
	Clock       func() time.Time
	IDProvider  ids.Provider
	Logger      *zap.Logger
	Metrics     *metrics.Registry
}

// Service owns contribution intake, the review workflow and clustering.
type Service struct {
	db          *gorm.DB
	documents   *documents.Service
	citations   *citations.Service
	directory   users.NameDirectory
	autoPublish AutoPublishPolicy
	clock       func() time.Time
	idProvider  ids.Provider
	logger      *zap.Logger
	metrics     *metrics.Registry
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	if cfg.Documents == nil {
		return nil, serviceerr.New(opServiceNew, "missing_documents", serviceerr.KindInternal, errMissingDocuments)
	}
	if cfg.Citations == nil {
		return nil, serviceerr.New(opServiceNew, "missing_citations", serviceerr.KindInternal, errMissingCitations)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerr.New(opServiceNew, "missing_id_provider", serviceerr.KindInternal, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:          cfg.Database,
		documents:   cfg.Documents,
		citations:   cfg.Citations,
		directory:   cfg.Directory,
		autoPublish: cfg.AutoPublish,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		logger:      logger,
		metrics:     cfg.Metrics,
	}, nil
}

// Create validates and stores a contribution. Pairs covered by the auto-publish policy skip review.
func (service *Service) Create(ctx context.Context, request CreateRequest) (View, error) {
	userID := strings.TrimSpace(request.UserID)
	if userID == "" {
		return View{}, serviceerr.New(opCreate, reasonMissingUser, serviceerr.KindValidation, errMissingUser)
	}
	targetType, err := ParseTargetType(request.TargetType)
	if err != nil {
		return View{}, serviceerr.New(opCreate, reasonInvalidTarget, serviceerr.KindValidation, err)
	}
	contributionType, err := ParseContributionType(request.ContributionType)
	if err != nil {
		return View{}, serviceerr.New(opCreate, reasonInvalidType, serviceerr.KindValidation, err)
	}
	content := strings.TrimSpace(request.Content)
	if content == "" {
		return View{}, serviceerr.New(opCreate, reasonEmptyContent, serviceerr.KindValidation, errEmptyContent)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return View{}, serviceerr.New(opCreate, reasonContentTooLong, serviceerr.KindValidation, errContentTooLong)
	}
	section := strings.TrimSpace(request.TargetSection)
	if utf8.RuneCountInString(section) > maxSectionLength {
		return View{}, serviceerr.New(opCreate, reasonSectionTooLong, serviceerr.KindValidation, errSectionTooLong)
	}

	contributionID, err := service.idProvider.NewID()
	if err != nil {
		service.logError(opCreate, reasonIDGeneration, err)
		return View{}, serviceerr.New(opCreate, reasonIDGeneration, serviceerr.KindInternal, err)
	}
	now := service.clock().UTC()
	contribution := Contribution{
		ID:               contributionID,
		UserID:           userID,
		TargetType:       targetType,
		TargetSection:    optionalString(section),
		ContributionType: contributionType,
		Content:          content,
		IsAnonymous:      request.IsAnonymous,
		Status:           StatusPending,
		CreatedAt:        now,
	}
	if service.autoPublish.AutoPublishes(targetType, contributionType) {
		contribution.Status = StatusAutoPublished
		contribution.ReviewedAt = &now
	}

	if err := service.db.WithContext(ctx).Create(&contribution).Error; err != nil {
		service.logError(opCreate, reasonInsertFailed, err, zap.String(fieldContributionID, contributionID))
		return View{}, serviceerr.New(opCreate, reasonInsertFailed, serviceerr.KindInternal, err)
	}
	service.metrics.ContributionCreated(string(targetType), string(contribution.Status))
	service.logger.Info("contribution created",
		zap.String(fieldContributionID, contribution.ID),
		zap.String("target_type", string(targetType)),
		zap.String("status", string(contribution.Status)))

	views, err := service.views(ctx, opCreate, []Contribution{contribution})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// List returns one of the contribution listings, newest first.
func (service *Service) List(ctx context.Context, query ListQuery) ([]View, error) {
	statement := service.db.WithContext(ctx).Model(&Contribution{})

	switch query.View {
	case ViewMine, "":
		userID := strings.TrimSpace(query.UserID)
		if userID == "" {
			return nil, serviceerr.New(opList, reasonMissingUser, serviceerr.KindValidation, errMissingUser)
		}
		statement = statement.Where("user_id = ?", userID)
	case ViewPending:
		if !query.IsAdmin {
			return nil, serviceerr.New(opList, reasonAdminRequired, serviceerr.KindForbidden, errAdminRequired)
		}
		statement = statement.Where("status = ?", StatusPending)
	case ViewAll:
		if !query.IsAdmin {
			return nil, serviceerr.New(opList, reasonAdminRequired, serviceerr.KindForbidden, errAdminRequired)
		}
		if strings.TrimSpace(query.Status) != "" {
			status, err := ParseStatus(query.Status)
			if err != nil {
				return nil, serviceerr.New(opList, reasonInvalidStatus, serviceerr.KindValidation, err)
			}
			statement = statement.Where("status = ?", status)
		}
		if strings.TrimSpace(query.TargetType) != "" {
			targetType, err := ParseTargetType(query.TargetType)
			if err != nil {
				return nil, serviceerr.New(opList, reasonInvalidTarget, serviceerr.KindValidation, err)
			}
			statement = statement.Where("target_type = ?", targetType)
		}
	case ViewApprovedForTarget:
		if strings.TrimSpace(query.TargetType) == "" {
			return nil, serviceerr.New(opList, reasonTargetTypeRequired, serviceerr.KindValidation, errTargetRequired)
		}
		targetType, err := ParseTargetType(query.TargetType)
		if err != nil {
			return nil, serviceerr.New(opList, reasonInvalidTarget, serviceerr.KindValidation, err)
		}
		statement = statement.
			Where("target_type = ?", targetType).
			Where("status IN ?", []Status{StatusApproved, StatusAutoPublished})
	default:
		return nil, serviceerr.New(opList, reasonInvalidView, serviceerr.KindValidation, errInvalidView)
	}

	var rows []Contribution
	if err := statement.Order(orderNewestFirst).Find(&rows).Error; err != nil {
		service.logError(opList, reasonQueryFailed, err, zap.String("view", string(query.View)))
		return nil, serviceerr.New(opList, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return service.views(ctx, opList, rows)
}

// Delete removes a contribution along with its citations and cluster membership.
// Authors may delete their own pending contributions; admins may delete any.
func (service *Service) Delete(ctx context.Context, contributionID string, actor Actor) error {
	contributionID = strings.TrimSpace(contributionID)
	if contributionID == "" {
		return serviceerr.New(opDelete, reasonMissingContribution, serviceerr.KindValidation, ErrContributionNotFound)
	}

	err := service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, err := service.lockContribution(tx, opDelete, contributionID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin {
			if contribution.UserID != strings.TrimSpace(actor.UserID) {
				return serviceerr.New(opDelete, reasonNotOwner, serviceerr.KindForbidden, errNotOwner)
			}
			if contribution.Status != StatusPending {
				return serviceerr.Newf(opDelete, reasonNotPending, serviceerr.KindConflict, ErrNotPending,
					"contribution is %s and can no longer be withdrawn", contribution.Status)
			}
		}
		if err := tx.Where("contribution_id = ?", contributionID).Delete(&citations.Citation{}).Error; err != nil {
			return service.deleteFailed(err, contributionID)
		}
		if err := tx.Where("contribution_id = ?", contributionID).Delete(&ClusterMember{}).Error; err != nil {
			return service.deleteFailed(err, contributionID)
		}
		if err := tx.Where("id = ?", contributionID).Delete(&Contribution{}).Error; err != nil {
			return service.deleteFailed(err, contributionID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	service.logger.Info("contribution deleted",
		zap.String(fieldContributionID, contributionID),
		zap.String("actor", actor.UserID),
		zap.Bool("admin", actor.IsAdmin))
	return nil
}

// Review approves or rejects a pending contribution. An approval of a document target appends a
// version carrying the insight and cites it, all in the same transaction as the status change.
func (service *Service) Review(ctx context.Context, request ReviewRequest) (ReviewResult, error) {
	contributionID := strings.TrimSpace(request.ContributionID)
	if contributionID == "" {
		return ReviewResult{}, serviceerr.New(opReview, reasonMissingContribution, serviceerr.KindValidation, ErrContributionNotFound)
	}
	decision, err := ParseStatus(request.Status)
	if err != nil || (decision != StatusApproved && decision != StatusRejected) {
		return ReviewResult{}, serviceerr.New(opReview, reasonInvalidStatus, serviceerr.KindValidation,
			fmt.Errorf("%w: %s", ErrInvalidStatus, errReviewDecision))
	}
	reviewNotes := strings.TrimSpace(request.ReviewNotes)
	if utf8.RuneCountInString(reviewNotes) > maxReviewNotesLength {
		return ReviewResult{}, serviceerr.New(opReview, reasonNotesTooLong, serviceerr.KindValidation, errNotesTooLong)
	}

	// The directory shares the connection pool, so the contributor label is resolved before the transaction opens.
	var existing Contribution
	if err := service.db.WithContext(ctx).Where("id = ?", contributionID).Take(&existing).Error; err != nil {
		return ReviewResult{}, service.lookupFailed(opReview, err, contributionID)
	}
	contributorName, err := service.contributorLabel(ctx, existing)
	if err != nil {
		return ReviewResult{}, err
	}

	var (
		reviewed Contribution
		version  *documents.Version
		citation *citations.Citation
	)
	err = service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contribution, err := service.lockContribution(tx, opReview, contributionID)
		if err != nil {
			return err
		}
		if contribution.Status != StatusPending {
			return serviceerr.Newf(opReview, reasonNotPending, serviceerr.KindConflict, ErrNotPending,
				"contribution is already %s", contribution.Status)
		}
		now := service.clock().UTC()

		if documentType, versioned := contribution.TargetType.DocumentType(); decision == StatusApproved && versioned {
			savedVersion, savedCitation, err := service.publishTx(tx, contribution, documentType, contributorName, request.ReviewerID, now)
			if err != nil {
				return err
			}
			version, citation = &savedVersion, &savedCitation
		}

		contribution.Status = decision
		contribution.ReviewerID = optionalString(strings.TrimSpace(request.ReviewerID))
		contribution.ReviewNotes = optionalString(reviewNotes)
		contribution.ReviewedAt = &now
		if err := tx.Model(&Contribution{}).Where("id = ?", contribution.ID).Updates(map[string]any{
			"status":       contribution.Status,
			"reviewer_id":  contribution.ReviewerID,
			"review_notes": contribution.ReviewNotes,
			"reviewed_at":  contribution.ReviewedAt,
		}).Error; err != nil {
			service.logError(opReview, reasonUpdateFailed, err, zap.String(fieldContributionID, contribution.ID))
			return serviceerr.New(opReview, reasonUpdateFailed, serviceerr.KindInternal, err)
		}
		reviewed = contribution
		return nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	service.metrics.ContributionReviewed(string(decision))
	logFields := []zap.Field{
		zap.String(fieldContributionID, reviewed.ID),
		zap.String("status", string(decision)),
		zap.String("reviewer", request.ReviewerID),
	}
	if version != nil {
		service.metrics.DocumentVersionSaved(version.DocumentType.String(), string(documents.SourceReview))
		logFields = append(logFields, zap.Int64("version_number", version.VersionNumber))
	}
	service.logger.Info("contribution reviewed", logFields...)

	views, err := service.views(ctx, opReview, []Contribution{reviewed})
	if err != nil {
		return ReviewResult{}, err
	}
	return ReviewResult{Contribution: views[0], Version: version, Citation: citation}, nil
}

func (service *Service) publishTx(tx *gorm.DB, contribution Contribution, documentType documents.Type, contributorName *string, reviewerID string, now time.Time) (documents.Version, citations.Citation, error) {
	snapshot, err := service.documents.CurrentTx(tx, documentType)
	if err != nil {
		return documents.Version{}, citations.Citation{}, err
	}
	snapshot.Payload.AppendInsight(documents.ContributedInsight{
		ContributionID:   contribution.ID,
		ContributorName:  contributorName,
		IsAnonymous:      contribution.IsAnonymous,
		Content:          contribution.Content,
		ContributionType: string(contribution.ContributionType),
		TargetSection:    contribution.TargetSection,
		AddedAt:          now,
	})

	label := anonymousContributor
	if contributorName != nil {
		label = *contributorName
	}
	version, err := service.documents.SaveVersionTx(tx, documents.SaveRequest{
		DocumentType: documentType,
		Payload:      snapshot.Payload,
		ChangeNotes:  fmt.Sprintf("Added %s from %s", contribution.ContributionType, label),
		CreatedBy:    reviewerID,
		Source:       documents.SourceReview,
	})
	if err != nil {
		return documents.Version{}, citations.Citation{}, err
	}

	section := ""
	if contribution.TargetSection != nil {
		section = *contribution.TargetSection
	}
	citation, err := service.citations.CreateTx(tx, citations.CreateRequest{
		ContributionID: contribution.ID,
		VersionType:    documentType.String(),
		VersionID:      version.ID,
		SectionID:      section,
	})
	if err != nil {
		return documents.Version{}, citations.Citation{}, err
	}
	return version, citation, nil
}

// CreateCluster groups two or more pending contributions and marks them clustered.
func (service *Service) CreateCluster(ctx context.Context, request ClusterRequest) (Cluster, error) {
	memberIDs := distinctIDs(request.ContributionIDs)
	if len(memberIDs) < 2 {
		return Cluster{}, serviceerr.New(opCreateCluster, reasonClusterTooSmall, serviceerr.KindValidation, ErrClusterTooSmall)
	}
	summary := strings.TrimSpace(request.Summary)
	if summary == "" {
		return Cluster{}, serviceerr.New(opCreateCluster, reasonEmptySummary, serviceerr.KindValidation, errEmptySummary)
	}
	name := strings.TrimSpace(request.Name)
	if utf8.RuneCountInString(name) > maxClusterNameLength {
		return Cluster{}, serviceerr.New(opCreateCluster, reasonNameTooLong, serviceerr.KindValidation, errNameTooLong)
	}
	createdBy := strings.TrimSpace(request.CreatedBy)
	if createdBy == "" {
		return Cluster{}, serviceerr.New(opCreateCluster, reasonMissingUser, serviceerr.KindValidation, errMissingUser)
	}

	clusterID, err := service.idProvider.NewID()
	if err != nil {
		service.logError(opCreateCluster, reasonIDGeneration, err)
		return Cluster{}, serviceerr.New(opCreateCluster, reasonIDGeneration, serviceerr.KindInternal, err)
	}
	cluster := Cluster{
		ID:        clusterID,
		Name:      optionalString(name),
		Summary:   summary,
		CreatedBy: createdBy,
		CreatedAt: service.clock().UTC(),
	}

	err = service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members []Contribution
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id IN ?", memberIDs).Find(&members).Error; err != nil {
			service.logError(opCreateCluster, reasonQueryFailed, err)
			return serviceerr.New(opCreateCluster, reasonQueryFailed, serviceerr.KindInternal, err)
		}
		found := make(map[string]Contribution, len(members))
		for _, member := range members {
			found[member.ID] = member
		}
		for _, memberID := range memberIDs {
			member, ok := found[memberID]
			if !ok {
				return serviceerr.Newf(opCreateCluster, reasonNotFound, serviceerr.KindNotFound, ErrContributionNotFound,
					"contribution %s not found", memberID)
			}
			if member.Status != StatusPending {
				return serviceerr.Newf(opCreateCluster, reasonNotPending, serviceerr.KindConflict, ErrNotPending,
					"contribution %s is already %s", memberID, member.Status)
			}
		}

		if err := tx.Create(&cluster).Error; err != nil {
			service.logError(opCreateCluster, reasonInsertFailed, err, zap.String(fieldClusterID, clusterID))
			return serviceerr.New(opCreateCluster, reasonInsertFailed, serviceerr.KindInternal, err)
		}
		memberships := make([]ClusterMember, 0, len(memberIDs))
		for _, memberID := range memberIDs {
			memberships = append(memberships, ClusterMember{ClusterID: clusterID, ContributionID: memberID})
		}
		if err := tx.Create(&memberships).Error; err != nil {
			service.logError(opCreateCluster, reasonInsertFailed, err, zap.String(fieldClusterID, clusterID))
			return serviceerr.New(opCreateCluster, reasonInsertFailed, serviceerr.KindInternal, err)
		}
		if err := tx.Model(&Contribution{}).Where("id IN ?", memberIDs).Updates(map[string]any{
			"status":     StatusClustered,
			"cluster_id": clusterID,
		}).Error; err != nil {
			service.logError(opCreateCluster, reasonUpdateFailed, err, zap.String(fieldClusterID, clusterID))
			return serviceerr.New(opCreateCluster, reasonUpdateFailed, serviceerr.KindInternal, err)
		}
		return nil
	})
	if err != nil {
		return Cluster{}, err
	}
	service.logger.Info("contribution cluster created",
		zap.String(fieldClusterID, clusterID),
		zap.Int("members", len(memberIDs)))
	return cluster, nil
}

// GetClusterWithContributions returns the cluster and its members, oldest first.
func (service *Service) GetClusterWithContributions(ctx context.Context, clusterID string) (ClusterDetail, error) {
	clusterID = strings.TrimSpace(clusterID)
	var cluster Cluster
	err := service.db.WithContext(ctx).Where("id = ?", clusterID).Take(&cluster).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ClusterDetail{}, serviceerr.Newf(opGetCluster, reasonClusterNotFound, serviceerr.KindNotFound, ErrClusterNotFound,
			"cluster %s not found", clusterID)
	}
	if err != nil {
		service.logError(opGetCluster, reasonQueryFailed, err, zap.String(fieldClusterID, clusterID))
		return ClusterDetail{}, serviceerr.New(opGetCluster, reasonQueryFailed, serviceerr.KindInternal, err)
	}

	var members []Contribution
	if err := service.db.WithContext(ctx).
		Joins("JOIN contribution_cluster_members ON contribution_cluster_members.contribution_id = contributions.id").
		Where("contribution_cluster_members.cluster_id = ?", clusterID).
		Order("contributions.created_at ASC, contributions.id ASC").
		Find(&members).Error; err != nil {
		service.logError(opGetCluster, reasonQueryFailed, err, zap.String(fieldClusterID, clusterID))
		return ClusterDetail{}, serviceerr.New(opGetCluster, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	views, err := service.views(ctx, opGetCluster, members)
	if err != nil {
		return ClusterDetail{}, err
	}
	return ClusterDetail{Cluster: cluster, Contributions: views}, nil
}

func (service *Service) lockContribution(tx *gorm.DB, operation, contributionID string) (Contribution, error) {
	var contribution Contribution
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", contributionID).Take(&contribution).Error
	if err != nil {
		return Contribution{}, service.lookupFailed(operation, err, contributionID)
	}
	return contribution, nil
}

func (service *Service) lookupFailed(operation string, err error, contributionID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceerr.Newf(operation, reasonNotFound, serviceerr.KindNotFound, ErrContributionNotFound,
			"contribution %s not found", contributionID)
	}
	service.logError(operation, reasonQueryFailed, err, zap.String(fieldContributionID, contributionID))
	return serviceerr.New(operation, reasonQueryFailed, serviceerr.KindInternal, err)
}

func (service *Service) deleteFailed(err error, contributionID string) error {
	service.logError(opDelete, reasonDeleteFailed, err, zap.String(fieldContributionID, contributionID))
	return serviceerr.New(opDelete, reasonDeleteFailed, serviceerr.KindInternal, err)
}

// contributorLabel returns nil for anonymous contributions.
func (service *Service) contributorLabel(ctx context.Context, contribution Contribution) (*string, error) {
	if contribution.IsAnonymous || service.directory == nil {
		return nil, nil
	}
	names, err := service.directory.DisplayNames(ctx, []string{contribution.UserID})
	if err != nil {
		service.logError(opReview, reasonDirectoryFailed, err, zap.String(fieldContributionID, contribution.ID))
		return nil, serviceerr.New(opReview, reasonDirectoryFailed, serviceerr.KindInternal, err)
	}
	if name, ok := names[contribution.UserID]; ok {
		return &name, nil
	}
	return nil, nil
}

func (service *Service) views(ctx context.Context, operation string, rows []Contribution) ([]View, error) {
	names := map[string]string{}
	if service.directory != nil {
		userIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			if !row.IsAnonymous {
				userIDs = append(userIDs, row.UserID)
			}
		}
		if len(userIDs) > 0 {
			resolved, err := service.directory.DisplayNames(ctx, userIDs)
			if err != nil {
				service.logError(operation, reasonDirectoryFailed, err)
				return nil, serviceerr.New(operation, reasonDirectoryFailed, serviceerr.KindInternal, err)
			}
			names = resolved
		}
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		view := View{Contribution: row}
		if !row.IsAnonymous {
			if name, ok := names[row.UserID]; ok {
				view.ContributorName = &name
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (service *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	service.logger.Error("contributions service error", attrs...)
}

func distinctIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, len(raw))
	for _, value := range raw {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	copied := value
	return &copied
}
