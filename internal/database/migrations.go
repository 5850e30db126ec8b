package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/contributions"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/quiz"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationSeedDocumentHeads   = "2026-03-01_seed_document_heads"
	migrationCitationSourceCheck = "2026-03-08_citation_source_check"

	citationSourceConstraint = "chk_citations_single_source"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

// Migrate brings the schema up to date: tables and indexes first, then named one-shot migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&documents.Head{},
		&documents.Version{},
		&contributions.Contribution{},
		&contributions.Cluster{},
		&contributions.ClusterMember{},
		&citations.Citation{},
		&quiz.Attempt{},
		&users.Identity{},
		&migrationRecord{},
	); err != nil {
		return err
	}
	if err := applyMigrations(db, logger); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("database schema ready")
	}
	return nil
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedDocumentHeads, apply: seedDocumentHeads},
		{name: migrationCitationSourceCheck, apply: addCitationSourceCheck},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// seedDocumentHeads aligns version counters with versions loaded before the counter table existed.
func seedDocumentHeads(db *gorm.DB) error {
	if err := db.Exec(`INSERT INTO document_heads (document_type, current_version)
		SELECT document_type, MAX(version_number) FROM document_versions
		WHERE document_type NOT IN (SELECT document_type FROM document_heads)
		GROUP BY document_type`).Error; err != nil {
		return err
	}
	return db.Exec(`UPDATE document_heads SET current_version = (
		SELECT MAX(version_number) FROM document_versions
		WHERE document_versions.document_type = document_heads.document_type)
		WHERE current_version < (
		SELECT COALESCE(MAX(version_number), 0) FROM document_versions
		WHERE document_versions.document_type = document_heads.document_type)`).Error
}

// addCitationSourceCheck enforces source exclusivity in storage. SQLite cannot add constraints
// to existing tables, so there the create operation remains the only guard.
func addCitationSourceCheck(db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	return db.Exec(`ALTER TABLE citations ADD CONSTRAINT ` + citationSourceConstraint +
		` CHECK ((contribution_id IS NULL) <> (cluster_id IS NULL))`).Error
}
