package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultProvider = "default"

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// NameDirectory resolves user ids to display names. *Service satisfies it.
type NameDirectory interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages canonical user identifiers and the directory used to label contributions.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
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
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolveCanonicalUserID returns the canonical user id for the provided session claims.
// Every call upserts the provider+subject row so email and display name track the latest session.
func (s *Service) ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	identity := Identity{
		Provider:    provider,
		Subject:     subject,
		UserID:      subject,
		Email:       normalize(claims.UserEmail),
		DisplayName: normalize(claims.UserDisplayName),
		LastSeenAt:  s.now().UTC(),
	}
	updateColumns := []string{"last_seen_at", "updated_at"}
	if identity.Email != "" {
		updateColumns = append(updateColumns, "user_email")
	}
	if identity.DisplayName != "" {
		updateColumns = append(updateColumns, "user_display_name")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "subject"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&identity).Error
	if err != nil {
		s.logger.Error("identity upsert failed",
			zap.String("provider", provider),
			zap.String("subject", subject),
			zap.Error(err))
		return "", err
	}

	var stored Identity
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		Take(&stored).Error; err != nil {
		return "", err
	}
	return stored.UserID, nil
}

// DisplayNames resolves user ids to their directory labels. Unknown ids are omitted.
func (s *Service) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	unique := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		trimmed := normalize(userID)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}
	if len(unique) == 0 {
		return names, nil
	}

	var identities []Identity
	if err := s.db.WithContext(ctx).
		Where("user_id IN ?", unique).
		Order("last_seen_at DESC").
		Find(&identities).Error; err != nil {
		return nil, err
	}
	for _, identity := range identities {
		if _, ok := names[identity.UserID]; ok {
			continue
		}
		if name := identity.Name(); name != "" {
			names[identity.UserID] = name
		}
	}
	return names, nil
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return provider, subject
}
