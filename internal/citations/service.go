package citations

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew = "citations.service.new"
	opCreate     = "citations.create"
	opList       = "citations.list"

	reasonMissingDatabase   = "missing_database"
	reasonSourceExclusivity = "source_exclusivity"
	reasonUnknownType       = "unknown_document_type"
	reasonMissingVersion    = "missing_version_id"
	reasonVersionMismatch   = "version_type_mismatch"
	reasonSourceNotFound    = "source_not_found"
	reasonSectionTooLong    = "section_too_long"
	reasonIDGeneration      = "id_generation_failed"
	reasonInsertFailed      = "insert_failed"
	reasonQueryFailed       = "query_failed"
	reasonDirectoryFailed   = "directory_failed"

	maxSectionLength = 190

	contributionsTable = "contributions"
	clustersTable      = "contribution_clusters"

	viewColumns = "citations.*, " +
		"contributions.content AS contribution_content, " +
		"contributions.contribution_type AS contribution_type, " +
		"contributions.user_id AS contributor_id, " +
		"contributions.is_anonymous AS is_anonymous, " +
		"contribution_clusters.name AS cluster_name, " +
		"contribution_clusters.summary AS cluster_summary"
	joinContributions = "LEFT JOIN contributions ON contributions.id = citations.contribution_id"
	joinClusters      = "LEFT JOIN contribution_clusters ON contribution_clusters.id = citations.cluster_id"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingDocuments  = errors.New("document store is required")
	errMissingVersionID  = errors.New("versionId is required")
	errSectionTooLong    = errors.New("sectionId exceeds 190 characters")
)

// ServiceConfig describes the dependencies of the citation index.
type ServiceConfig struct {
	Database   *gorm.DB
	Documents  *documents.Service
	Directory  users.NameDirectory
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service records and looks up provenance links between document versions and contributions.
type Service struct {
	db         *gorm.DB
	documents  *documents.Service
	directory  users.NameDirectory
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	if cfg.Documents == nil {
		return nil, serviceerr.New(opServiceNew, "missing_documents", serviceerr.KindInternal, errMissingDocuments)
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
		db:         cfg.Database,
		documents:  cfg.Documents,
		directory:  cfg.Directory,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create validates and stores a citation in its own transaction.
func (service *Service) Create(ctx context.Context, request CreateRequest) (Citation, error) {
	var created Citation
	err := service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		citation, err := service.CreateTx(tx, request)
		if err != nil {
			return err
		}
		created = citation
		return nil
	})
	if err != nil {
		return Citation{}, err
	}
	service.logger.Info("citation created",
		zap.String("citation_id", created.ID),
		zap.String("version_id", created.VersionID))
	return created, nil
}

// CreateTx validates and stores a citation inside an existing transaction.
func (service *Service) CreateTx(tx *gorm.DB, request CreateRequest) (Citation, error) {
	contributionID := strings.TrimSpace(request.ContributionID)
	clusterID := strings.TrimSpace(request.ClusterID)
	if (contributionID == "") == (clusterID == "") {
		return Citation{}, serviceerr.New(opCreate, reasonSourceExclusivity, serviceerr.KindValidation, ErrSourceExclusivity)
	}
	versionType, err := documents.ParseType(request.VersionType)
	if err != nil {
		return Citation{}, serviceerr.New(opCreate, reasonUnknownType, serviceerr.KindValidation, err)
	}
	versionID := strings.TrimSpace(request.VersionID)
	if versionID == "" {
		return Citation{}, serviceerr.New(opCreate, reasonMissingVersion, serviceerr.KindValidation, errMissingVersionID)
	}
	sectionID := strings.TrimSpace(request.SectionID)
	if utf8.RuneCountInString(sectionID) > maxSectionLength {
		return Citation{}, serviceerr.New(opCreate, reasonSectionTooLong, serviceerr.KindValidation, errSectionTooLong)
	}

	version, err := service.documents.GetVersionByIDTx(tx, versionID)
	if err != nil {
		return Citation{}, err
	}
	if version.DocumentType != versionType {
		return Citation{}, serviceerr.Newf(opCreate, reasonVersionMismatch, serviceerr.KindNotFound, ErrVersionMismatch,
			"%s version %s not found", versionType, versionID)
	}

	sourceTable, sourceID := contributionsTable, contributionID
	if clusterID != "" {
		sourceTable, sourceID = clustersTable, clusterID
	}
	var sourceCount int64
	if err := tx.Table(sourceTable).Where("id = ?", sourceID).Count(&sourceCount).Error; err != nil {
		service.logError(opCreate, reasonQueryFailed, err, zap.String("source_id", sourceID))
		return Citation{}, serviceerr.New(opCreate, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	if sourceCount == 0 {
		return Citation{}, serviceerr.Newf(opCreate, reasonSourceNotFound, serviceerr.KindNotFound, ErrSourceNotFound,
			"source %s not found", sourceID)
	}

	citationID, err := service.idProvider.NewID()
	if err != nil {
		service.logError(opCreate, reasonIDGeneration, err)
		return Citation{}, serviceerr.New(opCreate, reasonIDGeneration, serviceerr.KindInternal, err)
	}
	citation := Citation{
		ID:             citationID,
		ContributionID: optionalString(contributionID),
		ClusterID:      optionalString(clusterID),
		VersionType:    versionType,
		VersionID:      versionID,
		SectionID:      optionalString(sectionID),
		CreatedAt:      service.clock().UTC(),
	}
	if err := tx.Create(&citation).Error; err != nil {
		service.logError(opCreate, reasonInsertFailed, err, zap.String("version_id", versionID))
		return Citation{}, serviceerr.New(opCreate, reasonInsertFailed, serviceerr.KindInternal, err)
	}
	return citation, nil
}

// ForVersion returns every citation attached to the version, oldest first.
func (service *Service) ForVersion(ctx context.Context, versionType, versionID string) ([]View, error) {
	return service.list(ctx, versionType, versionID, nil)
}

// ForSection returns the citations attached to one section of the version, oldest first.
func (service *Service) ForSection(ctx context.Context, versionType, versionID, sectionID string) ([]View, error) {
	section := strings.TrimSpace(sectionID)
	return service.list(ctx, versionType, versionID, &section)
}

type viewRow struct {
	Citation
	ContributionContent *string
	ContributionType    *string
	ContributorID       *string
	IsAnonymous         *bool
	ClusterName         *string
	ClusterSummary      *string
}

func (service *Service) list(ctx context.Context, rawType, rawVersionID string, sectionID *string) ([]View, error) {
	versionType, err := documents.ParseType(rawType)
	if err != nil {
		return nil, serviceerr.New(opList, reasonUnknownType, serviceerr.KindValidation, err)
	}
	versionID := strings.TrimSpace(rawVersionID)
	if versionID == "" {
		return nil, serviceerr.New(opList, reasonMissingVersion, serviceerr.KindValidation, errMissingVersionID)
	}

	query := service.db.WithContext(ctx).
		Table("citations").
		Select(viewColumns).
		Joins(joinContributions).
		Joins(joinClusters).
		Where("citations.version_type = ? AND citations.version_id = ?", versionType, versionID)
	if sectionID != nil {
		query = query.Where("citations.section_id = ?", *sectionID)
	}
	var rows []viewRow
	if err := query.Order("citations.created_at ASC, citations.id ASC").Scan(&rows).Error; err != nil {
		service.logError(opList, reasonQueryFailed, err, zap.String("version_id", versionID))
		return nil, serviceerr.New(opList, reasonQueryFailed, serviceerr.KindInternal, err)
	}

	names, err := service.contributorNames(ctx, rows)
	if err != nil {
		service.logError(opList, reasonDirectoryFailed, err)
		return nil, serviceerr.New(opList, reasonDirectoryFailed, serviceerr.KindInternal, err)
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		view := View{
			Citation:            row.Citation,
			ContributionContent: row.ContributionContent,
			ContributionType:    row.ContributionType,
			IsAnonymous:         row.IsAnonymous != nil && *row.IsAnonymous,
			ClusterName:         row.ClusterName,
			ClusterSummary:      row.ClusterSummary,
		}
		if !view.IsAnonymous && row.ContributorID != nil {
			if name, ok := names[*row.ContributorID]; ok {
				view.ContributorName = &name
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (service *Service) contributorNames(ctx context.Context, rows []viewRow) (map[string]string, error) {
	if service.directory == nil {
		return map[string]string{}, nil
	}
	userIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ContributorID != nil && (row.IsAnonymous == nil || !*row.IsAnonymous) {
			userIDs = append(userIDs, *row.ContributorID)
		}
	}
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}
	return service.directory.DisplayNames(ctx, userIDs)
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
	service.logger.Error("citations service error", attrs...)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	copied := value
	return &copied
}
