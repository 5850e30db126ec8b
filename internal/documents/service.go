package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew     = "documents.service.new"
	opGetCurrent     = "documents.get_current"
	opSaveVersion    = "documents.save_version"
	opListVersions   = "documents.list_versions"
	opGetVersion     = "documents.get_version"
	opRestoreVersion = "documents.restore_version"

	fieldDocumentType  = "document_type"
	fieldVersionNumber = "version_number"

	queryDocumentType       = "document_type = ?"
	queryTypeAndNumber      = "document_type = ? AND version_number = ?"
	orderVersionNumberDesc  = "version_number DESC"
	columnCurrentVersion    = "current_version"
	summaryColumns          = "id, document_type, version_number, change_notes, created_by, created_at"
	maxChangeNotesLength    = 2000
	reasonMissingDatabase   = "missing_database"
	reasonUnknownType       = "unknown_document_type"
	reasonInvalidPayload    = "invalid_payload"
	reasonTypeMismatch      = "payload_type_mismatch"
	reasonHeadUpsertFailed  = "head_upsert_failed"
	reasonHeadLockFailed    = "head_lock_failed"
	reasonHeadUpdateFailed  = "head_update_failed"
	reasonIDGeneration      = "id_generation_failed"
	reasonEncodeFailed      = "encode_failed"
	reasonInsertFailed      = "version_insert_failed"
	reasonQueryFailed       = "query_failed"
	reasonVersionNotFound   = "version_not_found"
	reasonInvalidNumber     = "invalid_version_number"
	reasonStoredDataInvalid = "stored_data_invalid"
	reasonNotesTooLong      = "change_notes_too_long"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errChangeNotesLength = fmt.Errorf("change notes exceed %d characters", maxChangeNotesLength)
	noOpLogger           = zap.NewNop()
)

// ServiceConfig describes the dependencies of the document store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
	Metrics    *metrics.Registry
}

// Service is the append-only document version store.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
	metrics    *metrics.Registry
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
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
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// GetCurrent returns the highest-numbered version, or the empty default shape when none exists.
func (service *Service) GetCurrent(ctx context.Context, documentType Type) (Snapshot, error) {
	if service.db == nil {
		return Snapshot{}, serviceerr.New(opGetCurrent, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	return service.CurrentTx(service.db.WithContext(ctx), documentType)
}

// CurrentTx loads the current snapshot using the supplied transaction handle.
func (service *Service) CurrentTx(tx *gorm.DB, documentType Type) (Snapshot, error) {
	if _, err := ParseType(documentType.String()); err != nil {
		return Snapshot{}, serviceerr.New(opGetCurrent, reasonUnknownType, serviceerr.KindValidation, err)
	}

	var latest Version
	err := tx.Where(queryDocumentType, documentType).Order(orderVersionNumberDesc).Limit(1).Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		payload, defaultErr := DefaultPayload(documentType)
		if defaultErr != nil {
			return Snapshot{}, serviceerr.New(opGetCurrent, reasonUnknownType, serviceerr.KindValidation, defaultErr)
		}
		return Snapshot{DocumentType: documentType, Payload: payload}, nil
	}
	if err != nil {
		service.logError(opGetCurrent, reasonQueryFailed, err, zap.String(fieldDocumentType, documentType.String()))
		return Snapshot{}, serviceerr.New(opGetCurrent, reasonQueryFailed, serviceerr.KindInternal, err)
	}

	payload, err := latest.Payload()
	if err != nil {
		service.logError(opGetCurrent, reasonStoredDataInvalid, err,
			zap.String(fieldDocumentType, documentType.String()),
			zap.Int64(fieldVersionNumber, latest.VersionNumber))
		return Snapshot{}, serviceerr.New(opGetCurrent, reasonStoredDataInvalid, serviceerr.KindInternal, err)
	}
	createdAt := latest.CreatedAt
	return Snapshot{
		DocumentType:  documentType,
		Payload:       payload,
		VersionID:     latest.ID,
		VersionNumber: latest.VersionNumber,
		CreatedAt:     &createdAt,
	}, nil
}

// SaveVersion appends a new version in its own transaction.
func (service *Service) SaveVersion(ctx context.Context, request SaveRequest) (Version, error) {
	if service.db == nil {
		return Version{}, serviceerr.New(opSaveVersion, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	if request.Source == "" {
		request.Source = SourceEdit
	}

	var saved Version
	err := service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, saveErr := service.SaveVersionTx(tx, request)
		if saveErr != nil {
			return saveErr
		}
		saved = version
		return nil
	})
	if err != nil {
		return Version{}, err
	}
	service.metrics.DocumentVersionSaved(request.DocumentType.String(), string(request.Source))
	service.logger.Info("document version saved",
		zap.String(fieldDocumentType, saved.DocumentType.String()),
		zap.Int64(fieldVersionNumber, saved.VersionNumber),
		zap.String("source", string(request.Source)))
	return saved, nil
}

// SaveRaw decodes client-supplied JSON into the document shape before appending it.
func (service *Service) SaveRaw(ctx context.Context, documentType Type, raw []byte, changeNotes, createdBy string) (Version, error) {
	if _, err := ParseType(documentType.String()); err != nil {
		return Version{}, serviceerr.New(opSaveVersion, reasonUnknownType, serviceerr.KindValidation, err)
	}
	payload, err := DecodePayload(documentType, raw)
	if err != nil {
		return Version{}, serviceerr.New(opSaveVersion, reasonInvalidPayload, serviceerr.KindValidation, err)
	}
	return service.SaveVersion(ctx, SaveRequest{
		DocumentType: documentType,
		Payload:      payload,
		ChangeNotes:  changeNotes,
		CreatedBy:    createdBy,
		Source:       SourceEdit,
	})
}

// SaveVersionTx appends a version inside an existing transaction. The per-type head row is
// locked for the remainder of the transaction so concurrent writers allocate distinct numbers.
func (service *Service) SaveVersionTx(tx *gorm.DB, request SaveRequest) (Version, error) {
	documentType, err := ParseType(request.DocumentType.String())
	if err != nil {
		return Version{}, serviceerr.New(opSaveVersion, reasonUnknownType, serviceerr.KindValidation, err)
	}
	if err := ValidatePayload(request.Payload); err != nil {
		return Version{}, serviceerr.New(opSaveVersion, reasonInvalidPayload, serviceerr.KindValidation, err)
	}
	if request.Payload.DocumentType() != documentType {
		return Version{}, serviceerr.New(opSaveVersion, reasonTypeMismatch, serviceerr.KindValidation,
			fmt.Errorf("%w: %s payload saved as %s", ErrPayloadTypeMismatch, request.Payload.DocumentType(), documentType))
	}
	changeNotes := strings.TrimSpace(request.ChangeNotes)
	if len(changeNotes) > maxChangeNotesLength {
		return Version{}, serviceerr.New(opSaveVersion, reasonNotesTooLong, serviceerr.KindValidation, errChangeNotesLength)
	}

	encoded, err := encodePayload(request.Payload)
	if err != nil {
		service.logError(opSaveVersion, reasonEncodeFailed, err, zap.String(fieldDocumentType, documentType.String()))
		return Version{}, serviceerr.New(opSaveVersion, reasonEncodeFailed, serviceerr.KindInternal, err)
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Head{DocumentType: documentType}).Error; err != nil {
		service.logError(opSaveVersion, reasonHeadUpsertFailed, err, zap.String(fieldDocumentType, documentType.String()))
		return Version{}, serviceerr.New(opSaveVersion, reasonHeadUpsertFailed, serviceerr.KindInternal, err)
	}

	var head Head
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(queryDocumentType, documentType).Take(&head).Error; err != nil {
		service.logError(opSaveVersion, reasonHeadLockFailed, err, zap.String(fieldDocumentType, documentType.String()))
		return Version{}, serviceerr.New(opSaveVersion, reasonHeadLockFailed, serviceerr.KindInternal, err)
	}

	nextVersion := head.CurrentVersion + 1
	if err := tx.Model(&Head{}).Where(queryDocumentType, documentType).Update(columnCurrentVersion, nextVersion).Error; err != nil {
		service.logError(opSaveVersion, reasonHeadUpdateFailed, err, zap.String(fieldDocumentType, documentType.String()))
		return Version{}, serviceerr.New(opSaveVersion, reasonHeadUpdateFailed, serviceerr.KindInternal, err)
	}

	versionID, err := service.idProvider.NewID()
	if err != nil {
		service.logError(opSaveVersion, reasonIDGeneration, err, zap.String(fieldDocumentType, documentType.String()))
		return Version{}, serviceerr.New(opSaveVersion, reasonIDGeneration, serviceerr.KindInternal, err)
	}

	version := Version{
		ID:            versionID,
		DocumentType:  documentType,
		VersionNumber: nextVersion,
		Data:          encoded,
		ChangeNotes:   optionalString(changeNotes),
		CreatedBy:     optionalString(strings.TrimSpace(request.CreatedBy)),
		CreatedAt:     service.clock().UTC(),
	}
	if err := tx.Create(&version).Error; err != nil {
		service.logError(opSaveVersion, reasonInsertFailed, err,
			zap.String(fieldDocumentType, documentType.String()),
			zap.Int64(fieldVersionNumber, nextVersion))
		return Version{}, serviceerr.New(opSaveVersion, reasonInsertFailed, serviceerr.KindInternal, err)
	}
	return version, nil
}

// ListVersions returns version metadata newest first, without payloads.
func (service *Service) ListVersions(ctx context.Context, documentType Type) ([]VersionSummary, error) {
	if service.db == nil {
		return nil, serviceerr.New(opListVersions, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	if _, err := ParseType(documentType.String()); err != nil {
		return nil, serviceerr.New(opListVersions, reasonUnknownType, serviceerr.KindValidation, err)
	}

	var versions []Version
	if err := service.db.WithContext(ctx).
		Select(summaryColumns).
		Where(queryDocumentType, documentType).
		Order(orderVersionNumberDesc).
		Find(&versions).Error; err != nil {
		service.logError(opListVersions, reasonQueryFailed, err, zap.String(fieldDocumentType, documentType.String()))
		return nil, serviceerr.New(opListVersions, reasonQueryFailed, serviceerr.KindInternal, err)
	}

	summaries := make([]VersionSummary, 0, len(versions))
	for _, version := range versions {
		summaries = append(summaries, VersionSummary{
			ID:            version.ID,
			DocumentType:  version.DocumentType,
			VersionNumber: version.VersionNumber,
			ChangeNotes:   version.ChangeNotes,
			CreatedBy:     version.CreatedBy,
			CreatedAt:     version.CreatedAt,
		})
	}
	return summaries, nil
}

// GetVersion returns one full version record.
func (service *Service) GetVersion(ctx context.Context, documentType Type, versionNumber int64) (Version, error) {
	if service.db == nil {
		return Version{}, serviceerr.New(opGetVersion, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	return service.getVersion(service.db.WithContext(ctx), opGetVersion, documentType, versionNumber)
}

// GetVersionByID returns the version with the given row identifier.
func (service *Service) GetVersionByID(ctx context.Context, versionID string) (Version, error) {
	if service.db == nil {
		return Version{}, serviceerr.New(opGetVersion, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}
	return service.GetVersionByIDTx(service.db.WithContext(ctx), versionID)
}

// GetVersionByIDTx is GetVersionByID on an existing transaction handle.
func (service *Service) GetVersionByIDTx(tx *gorm.DB, versionID string) (Version, error) {
	var version Version
	err := tx.Where("id = ?", strings.TrimSpace(versionID)).Take(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Version{}, serviceerr.Newf(opGetVersion, reasonVersionNotFound, serviceerr.KindNotFound, ErrVersionNotFound,
			"version %s not found", versionID)
	}
	if err != nil {
		service.logError(opGetVersion, reasonQueryFailed, err, zap.String("version_id", versionID))
		return Version{}, serviceerr.New(opGetVersion, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return version, nil
}

// RestoreVersion appends a new version carrying the data of versionNumber.
func (service *Service) RestoreVersion(ctx context.Context, documentType Type, versionNumber int64, restoredBy string) (Version, error) {
	if service.db == nil {
		return Version{}, serviceerr.New(opRestoreVersion, reasonMissingDatabase, serviceerr.KindInternal, errMissingDatabase)
	}

	var restored Version
	err := service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := service.getVersion(tx, opRestoreVersion, documentType, versionNumber)
		if err != nil {
			return err
		}
		payload, err := source.Payload()
		if err != nil {
			service.logError(opRestoreVersion, reasonStoredDataInvalid, err,
				zap.String(fieldDocumentType, documentType.String()),
				zap.Int64(fieldVersionNumber, versionNumber))
			return serviceerr.New(opRestoreVersion, reasonStoredDataInvalid, serviceerr.KindInternal, err)
		}
		version, err := service.SaveVersionTx(tx, SaveRequest{
			DocumentType: documentType,
			Payload:      payload,
			ChangeNotes:  fmt.Sprintf("Restored from version %d", versionNumber),
			CreatedBy:    restoredBy,
			Source:       SourceRestore,
		})
		if err != nil {
			return err
		}
		restored = version
		return nil
	})
	if err != nil {
		return Version{}, err
	}
	service.metrics.DocumentVersionSaved(documentType.String(), string(SourceRestore))
	service.logger.Info("document version restored",
		zap.String(fieldDocumentType, documentType.String()),
		zap.Int64("restored_from", versionNumber),
		zap.Int64(fieldVersionNumber, restored.VersionNumber))
	return restored, nil
}

func (service *Service) getVersion(tx *gorm.DB, operation string, documentType Type, versionNumber int64) (Version, error) {
	if _, err := ParseType(documentType.String()); err != nil {
		return Version{}, serviceerr.New(operation, reasonUnknownType, serviceerr.KindValidation, err)
	}
	if versionNumber <= 0 {
		return Version{}, serviceerr.New(operation, reasonInvalidNumber, serviceerr.KindValidation,
			fmt.Errorf("%w: %d", ErrInvalidVersionNumber, versionNumber))
	}

	var version Version
	err := tx.Where(queryTypeAndNumber, documentType, versionNumber).Take(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Version{}, serviceerr.Newf(operation, reasonVersionNotFound, serviceerr.KindNotFound, ErrVersionNotFound,
			"%s version %d not found", documentType, versionNumber)
	}
	if err != nil {
		service.logError(operation, reasonQueryFailed, err,
			zap.String(fieldDocumentType, documentType.String()),
			zap.Int64(fieldVersionNumber, versionNumber))
		return Version{}, serviceerr.New(operation, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return version, nil
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
	logger := service.logger
	if logger == nil {
		logger = noOpLogger
	}
	logger.Error("documents service error", attrs...)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	copied := value
	return &copied
}
