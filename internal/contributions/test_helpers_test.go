package contributions

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testAuthorID   = "author-1"
	testAuthorName = "Dana Seller"
	testOtherID    = "author-2"
	testAdminID    = "admin-1"
)

type steppingClock struct {
	base  time.Time
	ticks atomic.Int64
}

func (c *steppingClock) Now() time.Time {
	return c.base.Add(time.Duration(c.ticks.Add(1)) * time.Second)
}

type testHarness struct {
	db            *gorm.DB
	documents     *documents.Service
	citations     *citations.Service
	contributions *Service
}

func newTestHarness(t *testing.T, rules ...AutoPublishRule) testHarness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "contributions.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(
		&documents.Head{}, &documents.Version{},
		&Contribution{}, &Cluster{}, &ClusterMember{},
		&citations.Citation{}, &users.Identity{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clock := &steppingClock{base: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	idProvider := ids.NewUUIDProvider()
	directory, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to build directory: %v", err)
	}
	if _, err := directory.ResolveCanonicalUserID(context.Background(), auth.SessionClaims{UserID: testAuthorID, UserDisplayName: testAuthorName}); err != nil {
		t.Fatalf("failed to seed author identity: %v", err)
	}

	documentStore, err := documents.NewService(documents.ServiceConfig{Database: db, Clock: clock.Now, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build document store: %v", err)
	}
	citationIndex, err := citations.NewService(citations.ServiceConfig{
		Database: db, Documents: documentStore, Directory: directory, Clock: clock.Now, IDProvider: idProvider,
	})
	if err != nil {
		t.Fatalf("failed to build citation index: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:    db,
		Documents:   documentStore,
		Citations:   citationIndex,
		Directory:   directory,
		AutoPublish: NewAutoPublishPolicy(rules...),
		Clock:       clock.Now,
		IDProvider:  idProvider,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build contributions service: %v", err)
	}
	return testHarness{db: db, documents: documentStore, citations: citationIndex, contributions: service}
}

func (h testHarness) mustCreate(t *testing.T, request CreateRequest) View {
	t.Helper()
	if request.UserID == "" {
		request.UserID = testAuthorID
	}
	if request.ContributionType == "" {
		request.ContributionType = string(TypeIntel)
	}
	if request.Content == "" {
		request.Content = "Competitor X cut prices by 20%"
	}
	created, err := h.contributions.Create(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to create contribution: %v", err)
	}
	return created
}

func (h testHarness) mustStatus(t *testing.T, contributionID string) Status {
	t.Helper()
	var stored Contribution
	if err := h.db.Where("id = ?", contributionID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload contribution: %v", err)
	}
	return stored.Status
}
