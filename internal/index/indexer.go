package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/schema"
	"github.com/hagaybar/biblioplan/pkg/record"
)

// Indexer consumes enriched records and populates the relational schema
// declared in internal/schema, one batch per transaction.
type Indexer struct {
	pool *pgxpool.Pool
}

// New returns an Indexer backed by pool. Migrate must have already been run
// against pool.
func New(pool *pgxpool.Pool) *Indexer {
	return &Indexer{pool: pool}
}

// IndexBatch writes every record in records within a single transaction. A
// record whose mms_id already exists is replaced in full (delete then
// re-insert) — re-ingestion is keyed by mms_id, never an in-place field
// patch.
//
// Invariant enforced per record: len(Imprints) must equal
// len(M2.ImprintsNorm); a mismatch aborts the whole batch rather than
// indexing a record with misaligned provenance.
func (ix *Indexer) IndexBatch(ctx context.Context, records []record.EnrichedRecord) error {
	for _, r := range records {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("index: record %q: %w", r.MMSID, err)
		}
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("index: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if err := indexOne(ctx, tx, r); err != nil {
			return fmt.Errorf("index: record %q: %w", r.MMSID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("index: commit transaction: %w", err)
	}
	return nil
}

// validateRecord checks the provenance-alignment invariant: every M2 slice
// must be parallel to its M1 counterpart. A batch containing one invalid
// record is rejected in full before any statement is executed.
func validateRecord(r record.EnrichedRecord) error {
	if len(r.Imprints) != len(r.M2.ImprintsNorm) {
		return fmt.Errorf("%d imprints but %d imprints_norm entries", len(r.Imprints), len(r.M2.ImprintsNorm))
	}
	if len(r.Subjects) != len(r.M2.SubjectsNorm) {
		return fmt.Errorf("%d subjects but %d subjects_norm entries", len(r.Subjects), len(r.M2.SubjectsNorm))
	}
	if len(r.Agents) != len(r.M2.AgentsNorm) {
		return fmt.Errorf("%d agents but %d agents_norm entries", len(r.Agents), len(r.M2.AgentsNorm))
	}
	if r.MMSID == "" {
		return fmt.Errorf("empty mms_id")
	}
	return nil
}

func indexOne(ctx context.Context, tx pgx.Tx, r record.EnrichedRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM `+schema.TableRecords+` WHERE `+schema.RecordsMMSID+` = $1`, r.MMSID); err != nil {
		return fmt.Errorf("delete existing: %w", err)
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO `+schema.TableRecords+` (`+schema.RecordsMMSID+`, `+schema.RecordsSourceFile+`, `+schema.RecordsJSONLLine+`, `+schema.RecordsSchemaVersion+`)
		VALUES ($1, $2, $3, $4)`,
		r.MMSID, r.SourceFile, r.JSONLLineNumber, schema.CurrentSchemaVersion)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	for _, t := range r.Titles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+schema.TableTitles+` (`+schema.TitlesRecordID+`, `+schema.TitlesTitle+`)
			VALUES ($1, $2)`, r.MMSID, t.Value); err != nil {
			return fmt.Errorf("insert title: %w", err)
		}
	}

	for i, imp := range r.Imprints {
		norm := r.M2.ImprintsNorm[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+schema.TableImprints+` (
				`+schema.ImprintsRecordID+`, `+schema.ImprintsOccurrence+`,
				`+schema.ImprintsDateRaw+`, `+schema.ImprintsPlaceRaw+`, `+schema.ImprintsPublisherRaw+`,
				`+schema.ImprintsDateStart+`, `+schema.ImprintsDateEnd+`,
				`+schema.ImprintsPlaceNorm+`, `+schema.ImprintsPublisherNorm+`,
				`+schema.ImprintsDateConfidence+`, `+schema.ImprintsDateMethod+`,
				`+schema.ImprintsPlaceConfidence+`, `+schema.ImprintsPlaceMethod+`,
				`+schema.ImprintsPubConfidence+`, `+schema.ImprintsPubMethod+`
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			r.MMSID, i,
			imp.Date.Value, imp.Place.Value, imp.Publisher.Value,
			norm.DateStart, norm.DateEnd,
			norm.PlaceNorm, norm.PublisherNorm,
			norm.DateConfidence, norm.DateMethod,
			norm.PlaceConfidence, norm.PlaceMethod,
			norm.PublisherConfidence, norm.PublisherMethod,
		); err != nil {
			return fmt.Errorf("insert imprint %d: %w", i, err)
		}
	}

	for i, s := range r.Subjects {
		norm := r.M2.SubjectsNorm[i].Norm
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+schema.TableSubjects+` (`+schema.SubjectsRecordID+`, `+schema.SubjectsSubject+`, `+schema.SubjectsNorm+`)
			VALUES ($1, $2, $3)`, r.MMSID, s.Value, norm); err != nil {
			return fmt.Errorf("insert subject %d: %w", i, err)
		}
	}

	for i, a := range r.Agents {
		norm := r.M2.AgentsNorm[i].Norm
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+schema.TableAgents+` (`+schema.AgentsRecordID+`, `+schema.AgentsName+`, `+schema.AgentsNorm+`, `+schema.AgentsRole+`)
			VALUES ($1, $2, $3, $4)`, r.MMSID, a.Name.Value, norm, a.Role); err != nil {
			return fmt.Errorf("insert agent %d: %w", i, err)
		}
	}

	for _, l := range r.Languages {
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+schema.TableLanguages+` (`+schema.LanguagesRecordID+`, `+schema.LanguagesCode+`)
			VALUES ($1, $2)`, r.MMSID, l.Value); err != nil {
			return fmt.Errorf("insert language: %w", err)
		}
	}

	for _, n := range r.Notes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+schema.TableNotes+` (`+schema.NotesRecordID+`, `+schema.NotesText+`)
			VALUES ($1, $2)`, r.MMSID, n.Value); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
	}

	return nil
}
