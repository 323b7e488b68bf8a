// Package index applies the schema contract (internal/schema) against a
// PostgreSQL database and loads enriched records into it in batched
// transactions.
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	if err := index.Migrate(ctx, pool); err != nil { ... }
//	idx := index.New(pool)
//	if err := idx.IndexBatch(ctx, records); err != nil { ... }
package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/schema"
)

var ddlStatements = []string{
	`CREATE TABLE IF NOT EXISTS ` + schema.TableRecords + ` (
		` + schema.RecordsMMSID + ` TEXT PRIMARY KEY,
		` + schema.RecordsSourceFile + ` TEXT NOT NULL,
		` + schema.RecordsJSONLLine + ` INTEGER NOT NULL,
		` + schema.RecordsSchemaVersion + ` TEXT NOT NULL DEFAULT '` + schema.CurrentSchemaVersion + `'
	)`,
	`CREATE TABLE IF NOT EXISTS ` + schema.TableTitles + ` (
		id BIGSERIAL PRIMARY KEY,
		` + schema.TitlesRecordID + ` TEXT NOT NULL REFERENCES ` + schema.TableRecords + `(` + schema.RecordsMMSID + `) ON DELETE CASCADE,
		` + schema.TitlesTitle + ` TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS titles_record_id_idx ON ` + schema.TableTitles + ` (` + schema.TitlesRecordID + `)`,
	`CREATE INDEX IF NOT EXISTS titles_fts_idx ON ` + schema.TableTitles + ` USING GIN (to_tsvector('english', ` + schema.TitlesTitle + `))`,

	`CREATE TABLE IF NOT EXISTS ` + schema.TableImprints + ` (
		id BIGSERIAL PRIMARY KEY,
		` + schema.ImprintsRecordID + ` TEXT NOT NULL REFERENCES ` + schema.TableRecords + `(` + schema.RecordsMMSID + `) ON DELETE CASCADE,
		` + schema.ImprintsOccurrence + ` INTEGER NOT NULL,
		` + schema.ImprintsDateRaw + ` TEXT NOT NULL DEFAULT '',
		` + schema.ImprintsPlaceRaw + ` TEXT NOT NULL DEFAULT '',
		` + schema.ImprintsPublisherRaw + ` TEXT NOT NULL DEFAULT '',
		` + schema.ImprintsDateStart + ` INTEGER,
		` + schema.ImprintsDateEnd + ` INTEGER,
		` + schema.ImprintsPlaceNorm + ` TEXT,
		` + schema.ImprintsPublisherNorm + ` TEXT,
		` + schema.ImprintsDateConfidence + ` DOUBLE PRECISION NOT NULL DEFAULT 0,
		` + schema.ImprintsDateMethod + ` TEXT NOT NULL DEFAULT '',
		` + schema.ImprintsPlaceConfidence + ` DOUBLE PRECISION NOT NULL DEFAULT 0,
		` + schema.ImprintsPlaceMethod + ` TEXT NOT NULL DEFAULT '',
		` + schema.ImprintsPubConfidence + ` DOUBLE PRECISION NOT NULL DEFAULT 0,
		` + schema.ImprintsPubMethod + ` TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS imprints_record_id_idx ON ` + schema.TableImprints + ` (` + schema.ImprintsRecordID + `)`,
	`CREATE INDEX IF NOT EXISTS imprints_date_range_idx ON ` + schema.TableImprints + ` (` + schema.ImprintsDateStart + `, ` + schema.ImprintsDateEnd + `)`,
	`CREATE INDEX IF NOT EXISTS imprints_place_norm_idx ON ` + schema.TableImprints + ` (` + schema.ImprintsPlaceNorm + `)`,
	`CREATE INDEX IF NOT EXISTS imprints_publisher_norm_idx ON ` + schema.TableImprints + ` (` + schema.ImprintsPublisherNorm + `)`,

	`CREATE TABLE IF NOT EXISTS ` + schema.TableSubjects + ` (
		id BIGSERIAL PRIMARY KEY,
		` + schema.SubjectsRecordID + ` TEXT NOT NULL REFERENCES ` + schema.TableRecords + `(` + schema.RecordsMMSID + `) ON DELETE CASCADE,
		` + schema.SubjectsSubject + ` TEXT NOT NULL,
		` + schema.SubjectsNorm + ` TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS subjects_record_id_idx ON ` + schema.TableSubjects + ` (` + schema.SubjectsRecordID + `)`,
	`CREATE INDEX IF NOT EXISTS subjects_norm_idx ON ` + schema.TableSubjects + ` (` + schema.SubjectsNorm + `)`,
	`CREATE INDEX IF NOT EXISTS subjects_fts_idx ON ` + schema.TableSubjects + ` USING GIN (to_tsvector('english', ` + schema.SubjectsSubject + `))`,

	`CREATE TABLE IF NOT EXISTS ` + schema.TableAgents + ` (
		id BIGSERIAL PRIMARY KEY,
		` + schema.AgentsRecordID + ` TEXT NOT NULL REFERENCES ` + schema.TableRecords + `(` + schema.RecordsMMSID + `) ON DELETE CASCADE,
		` + schema.AgentsName + ` TEXT NOT NULL,
		` + schema.AgentsNorm + ` TEXT,
		` + schema.AgentsRole + ` TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS agents_record_id_idx ON ` + schema.TableAgents + ` (` + schema.AgentsRecordID + `)`,
	`CREATE INDEX IF NOT EXISTS agents_norm_idx ON ` + schema.TableAgents + ` (` + schema.AgentsNorm + `)`,

	`CREATE TABLE IF NOT EXISTS ` + schema.TableLanguages + ` (
		id BIGSERIAL PRIMARY KEY,
		` + schema.LanguagesRecordID + ` TEXT NOT NULL REFERENCES ` + schema.TableRecords + `(` + schema.RecordsMMSID + `) ON DELETE CASCADE,
		` + schema.LanguagesCode + ` TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS languages_record_id_idx ON ` + schema.TableLanguages + ` (` + schema.LanguagesRecordID + `)`,

	`CREATE TABLE IF NOT EXISTS ` + schema.TableNotes + ` (
		id BIGSERIAL PRIMARY KEY,
		` + schema.NotesRecordID + ` TEXT NOT NULL REFERENCES ` + schema.TableRecords + `(` + schema.RecordsMMSID + `) ON DELETE CASCADE,
		` + schema.NotesText + ` TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notes_record_id_idx ON ` + schema.TableNotes + ` (` + schema.NotesRecordID + `)`,
}

// Migrate runs every DDL statement idempotently against pool. Statements use
// CREATE TABLE/INDEX IF NOT EXISTS, so re-running Migrate against an
// up-to-date database is a no-op. Breaking schema changes are never applied
// in place — a MAJOR schema_version bump means a full rebuild from the
// enriched JSONL, not a migration step added here.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range ddlStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("index: migrate: %w", err)
		}
	}
	return nil
}
