package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultPassingScore is the certification threshold.
const DefaultPassingScore = 80

const (
	opServiceNew = "quiz.service.new"
	opSubmit     = "quiz.submit"
	opAttempts   = "quiz.attempts"
	opHasPassed  = "quiz.has_passed"

	reasonMissingUser  = "missing_user"
	reasonEncodeFailed = "encode_failed"
	reasonIDGeneration = "id_generation_failed"
	reasonInsertFailed = "insert_failed"
	reasonQueryFailed  = "query_failed"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUser       = errors.New("user id is required")
)

// Attempt is one persisted quiz submission.
type Attempt struct {
	ID             string         `gorm:"column:id;primaryKey;size:36;not null"`
	UserID         string         `gorm:"column:user_id;size:190;not null;index"`
	Score          int            `gorm:"column:score;not null"`
	TotalQuestions int            `gorm:"column:total_questions;not null"`
	Passed         bool           `gorm:"column:passed;not null"`
	Answers        datatypes.JSON `gorm:"column:answers;not null"`
	CompletedAt    time.Time      `gorm:"column:completed_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Attempt) TableName() string {
	return "quiz_attempts"
}

// ServiceConfig describes the dependencies of the quiz service.
type ServiceConfig struct {
	Database     *gorm.DB
	Bank         Bank
	PassingScore int
	Clock        func() time.Time
	IDProvider   ids.Provider
	Logger       *zap.Logger
	Metrics      *metrics.Registry
}

// Service scores submissions and keeps the append-only attempt log.
type Service struct {
	db           *gorm.DB
	bank         Bank
	passingScore int
	clock        func() time.Time
	idProvider   ids.Provider
	logger       *zap.Logger
	metrics      *metrics.Registry
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, "missing_database", serviceerr.KindInternal, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerr.New(opServiceNew, "missing_id_provider", serviceerr.KindInternal, errMissingIDProvider)
	}
	bank := cfg.Bank
	if len(bank) == 0 {
		bank = DefaultBank()
	}
	passingScore := cfg.PassingScore
	if passingScore <= 0 {
		passingScore = DefaultPassingScore
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
		db:           cfg.Database,
		bank:         bank,
		passingScore: passingScore,
		clock:        clock,
		idProvider:   cfg.IDProvider,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Questions returns the bank without answer keys.
func (service *Service) Questions() []PublicQuestion {
	return service.bank.PublicQuestions()
}

// PassingScore returns the configured threshold.
func (service *Service) PassingScore() int {
	return service.passingScore
}

// Submit scores the answers and records a new attempt.
func (service *Service) Submit(ctx context.Context, userID string, answers map[string]any) (Result, Attempt, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, Attempt{}, serviceerr.New(opSubmit, reasonMissingUser, serviceerr.KindValidation, errMissingUser)
	}
	result := Score(service.bank, answers, service.passingScore)

	selections := make(map[string]*int, len(result.Results))
	for _, questionResult := range result.Results {
		selections[questionResult.QuestionID] = questionResult.Selected
	}
	encoded, err := json.Marshal(selections)
	if err != nil {
		service.logError(opSubmit, reasonEncodeFailed, err)
		return Result{}, Attempt{}, serviceerr.New(opSubmit, reasonEncodeFailed, serviceerr.KindInternal, err)
	}
	attemptID, err := service.idProvider.NewID()
	if err != nil {
		service.logError(opSubmit, reasonIDGeneration, err)
		return Result{}, Attempt{}, serviceerr.New(opSubmit, reasonIDGeneration, serviceerr.KindInternal, err)
	}

	attempt := Attempt{
		ID:             attemptID,
		UserID:         userID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		Passed:         result.Passed,
		Answers:        datatypes.JSON(encoded),
		CompletedAt:    service.clock().UTC(),
	}
	if err := service.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		service.logError(opSubmit, reasonInsertFailed, err, zap.String("user_id", userID))
		return Result{}, Attempt{}, serviceerr.New(opSubmit, reasonInsertFailed, serviceerr.KindInternal, err)
	}
	service.metrics.QuizAttemptRecorded(result.Passed)
	service.logger.Info("quiz attempt recorded",
		zap.String("user_id", userID),
		zap.Int("score", result.Score),
		zap.Bool("passed", result.Passed))
	return result, attempt, nil
}

// Attempts lists the user's attempts, newest first.
func (service *Service) Attempts(ctx context.Context, userID string) ([]Attempt, error) {
	var attempts []Attempt
	if err := service.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("completed_at DESC, id DESC").
		Find(&attempts).Error; err != nil {
		service.logError(opAttempts, reasonQueryFailed, err, zap.String("user_id", userID))
		return nil, serviceerr.New(opAttempts, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return attempts, nil
}

// HasPassed reports whether any attempt by the user passed.
func (service *Service) HasPassed(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := service.db.WithContext(ctx).
		Model(&Attempt{}).
		Where("user_id = ? AND passed = ?", strings.TrimSpace(userID), true).
		Count(&count).Error; err != nil {
		service.logError(opHasPassed, reasonQueryFailed, err, zap.String("user_id", userID))
		return false, serviceerr.New(opHasPassed, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return count > 0, nil
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
	service.logger.Error("quiz service error", attrs...)
}
