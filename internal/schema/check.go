package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckLive introspects the live database behind pool and asserts that every
// table and column named by FieldSpecs actually exists. It is run once at
// startup; a mismatch is a fatal internal-invariant failure, not a request-time
// error — the process must not serve traffic against a schema it cannot
// trust.
func CheckLive(ctx context.Context, pool *pgxpool.Pool) error {
	tables := map[string][]string{
		TableRecords:  {RecordsMMSID, RecordsSourceFile, RecordsJSONLLine, RecordsSchemaVersion},
		TableTitles:   {TitlesRecordID, TitlesTitle},
		TableImprints: {
			ImprintsRecordID, ImprintsOccurrence, ImprintsDateRaw, ImprintsPlaceRaw, ImprintsPublisherRaw,
			ImprintsDateStart, ImprintsDateEnd, ImprintsPlaceNorm, ImprintsPublisherNorm,
			ImprintsDateConfidence, ImprintsDateMethod, ImprintsPlaceConfidence, ImprintsPlaceMethod,
			ImprintsPubConfidence, ImprintsPubMethod,
		},
		TableSubjects:  {SubjectsRecordID, SubjectsSubject, SubjectsNorm},
		TableAgents:    {AgentsRecordID, AgentsName, AgentsNorm, AgentsRole},
		TableLanguages: {LanguagesRecordID, LanguagesCode},
		TableNotes:     {NotesRecordID, NotesText},
	}

	for table, columns := range tables {
		existing, err := liveColumns(ctx, pool, table)
		if err != nil {
			return fmt.Errorf("schema: introspect %s: %w", table, err)
		}
		for _, col := range columns {
			if !existing[col] {
				return fmt.Errorf("schema: table %q is missing expected column %q — rebuild required", table, col)
			}
		}
	}

	for _, spec := range FieldSpecs {
		if _, ok := tables[spec.Table]; !ok {
			return fmt.Errorf("schema: field %q references unknown table %q", spec.Field, spec.Table)
		}
	}

	return nil
}

func liveColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
