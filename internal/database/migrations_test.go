package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"
)

func TestMigrateSeedsDocumentHeadsFromExistingVersions(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")
	database, err := OpenSQLite(databasePath, nil)
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&documents.Head{}, &documents.Version{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	for number, id := range []string{"v1", "v2", "v3"} {
		version := documents.Version{
			ID:            id,
			DocumentType:  documents.TypeCompetitors,
			VersionNumber: int64(number + 1),
			Data:          datatypes.JSON(`{"competitors":[],"contributedInsights":[]}`),
		}
		if err := database.Create(&version).Error; err != nil {
			testContext.Fatalf("failed to insert version: %v", err)
		}
	}

	core, recorded := observer.New(zapcore.InfoLevel)
	if err := Migrate(database, zap.New(core)); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var head documents.Head
	if err := database.Where("document_type = ?", documents.TypeCompetitors).Take(&head).Error; err != nil {
		testContext.Fatalf("expected seeded head: %v", err)
	}
	if head.CurrentVersion != 3 {
		testContext.Fatalf("expected head at 3, got %d", head.CurrentVersion)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedDocumentHeads).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
	if got := recorded.FilterMessage("database migration applied").Len(); got != 2 {
		testContext.Fatalf("expected 2 applied migrations, got %d", got)
	}

	if err := Migrate(database, zap.New(core)); err != nil {
		testContext.Fatalf("second migrate failed: %v", err)
	}
	if got := recorded.FilterMessage("database migration applied").Len(); got != 2 {
		testContext.Fatalf("named migrations must run once, got %d applications", got)
	}
}

func TestOpenRejectsUnknownDriverAndMissingLocation(testContext *testing.T) {
	if _, err := Open(Config{Driver: "mysql"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Config{Driver: DriverSQLite}, nil); err == nil {
		testContext.Fatalf("expected missing path error")
	}
	if _, err := Open(Config{Driver: DriverPostgres}, nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}
