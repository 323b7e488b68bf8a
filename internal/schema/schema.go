// Package schema is the single source of truth for the index database's
// tables, columns, and the mapping between QueryPlan filter fields and the
// SQL columns (and MARC source paths) they resolve to.
//
// Planner and Executor must never reference a table or column name as a
// string literal; every reference goes through the constants and maps
// declared here. CheckLive cross-checks these constants against the live
// database at startup so a renamed column fails fast instead of producing
// silently wrong SQL.
package schema

// Table names.
const (
	TableRecords  = "records"
	TableTitles   = "titles"
	TableImprints = "imprints"
	TableSubjects = "subjects"
	TableAgents   = "agents"
	TableLanguages = "languages"
	TableNotes    = "notes"
)

// Column names, grouped by table.
const (
	RecordsMMSID         = "mms_id"
	RecordsSourceFile    = "source_file"
	RecordsJSONLLine     = "jsonl_line_number"
	RecordsSchemaVersion = "schema_version"

	TitlesRecordID = "record_id"
	TitlesTitle    = "title"

	ImprintsRecordID         = "record_id"
	ImprintsOccurrence       = "occurrence"
	ImprintsDateRaw          = "date_raw"
	ImprintsPlaceRaw         = "place_raw"
	ImprintsPublisherRaw     = "publisher_raw"
	ImprintsDateStart        = "date_start"
	ImprintsDateEnd          = "date_end"
	ImprintsPlaceNorm        = "place_norm"
	ImprintsPublisherNorm    = "publisher_norm"
	ImprintsDateConfidence   = "date_confidence"
	ImprintsDateMethod       = "date_method"
	ImprintsPlaceConfidence  = "place_confidence"
	ImprintsPlaceMethod      = "place_method"
	ImprintsPubConfidence    = "publisher_confidence"
	ImprintsPubMethod        = "publisher_method"

	SubjectsRecordID = "record_id"
	SubjectsSubject  = "subject"
	SubjectsNorm     = "subject_norm"

	AgentsRecordID = "record_id"
	AgentsName     = "agent_name"
	AgentsNorm     = "agent_norm"
	AgentsRole     = "agent_role"

	LanguagesRecordID = "record_id"
	LanguagesCode     = "language_code"

	NotesRecordID = "record_id"
	NotesText     = "note_text"
)

// FilterField enumerates every field a QueryPlan Filter may reference.
// It is a closed set: the Plan Compiler rejects any field not in FieldSpecs.
type FilterField string

const (
	FieldPlace       FilterField = "place"
	FieldPublisher   FilterField = "publisher"
	FieldDate        FilterField = "date"
	FieldAgent       FilterField = "agent"
	FieldSubject     FilterField = "subject"
	FieldLanguage    FilterField = "language"
	FieldTitle       FilterField = "title"
)

// FieldSpec describes how a FilterField resolves to a SQL column, the join
// path from records needed to reach it, the MARC source path used when
// emitting Evidence, and whether it is a full-text ("CONTAINS"-eligible)
// column.
type FieldSpec struct {
	// Field is the FilterField this spec describes.
	Field FilterField

	// Table is the table the column lives in.
	Table string

	// Column is the canonical SQL column for EQ/IN/RANGE predicates.
	// For range fields (currently only date) this is the start column;
	// RangeEndColumn gives the end column.
	Column string

	// RangeEndColumn is set only for fields that support RANGE (date).
	RangeEndColumn string

	// FullText is true when the field supports CONTAINS, compiled as a
	// to_tsvector match over the field's own column.
	FullText bool

	// JoinOn is the foreign key column in Table that references
	// records.mms_id (empty for the records table itself).
	JoinOn string

	// MARCPath is the source path template used to build Evidence entries,
	// e.g. "260$a" or "264$a" for imprint place.
	MARCPath string

	// RawColumn, NormColumn, ConfidenceColumn and MethodColumn name the
	// columns used to build Evidence for this field, when they differ from
	// Column (e.g. place/publisher/date have distinct raw vs. normalized
	// storage). Empty when not applicable.
	RawColumn        string
	NormColumn       string
	ConfidenceColumn string
	MethodColumn     string
}

// FieldSpecs is the closed set of recognised filter fields. Order is
// insignificant; lookups go through FieldSpecs map-style via Lookup.
var FieldSpecs = []FieldSpec{
	{
		Field: FieldPlace, Table: TableImprints, Column: ImprintsPlaceNorm,
		JoinOn: ImprintsRecordID, MARCPath: "260$a",
		RawColumn: ImprintsPlaceRaw, NormColumn: ImprintsPlaceNorm,
		ConfidenceColumn: ImprintsPlaceConfidence, MethodColumn: ImprintsPlaceMethod,
	},
	{
		Field: FieldPublisher, Table: TableImprints, Column: ImprintsPublisherNorm,
		JoinOn: ImprintsRecordID, MARCPath: "260$b",
		RawColumn: ImprintsPublisherRaw, NormColumn: ImprintsPublisherNorm,
		ConfidenceColumn: ImprintsPubConfidence, MethodColumn: ImprintsPubMethod,
	},
	{
		Field: FieldDate, Table: TableImprints, Column: ImprintsDateStart, RangeEndColumn: ImprintsDateEnd,
		JoinOn: ImprintsRecordID, MARCPath: "260$c",
		RawColumn: ImprintsDateRaw,
		ConfidenceColumn: ImprintsDateConfidence, MethodColumn: ImprintsDateMethod,
	},
	{
		Field: FieldAgent, Table: TableAgents, Column: AgentsNorm,
		JoinOn: AgentsRecordID, MARCPath: "100$a",
		RawColumn: AgentsName, NormColumn: AgentsNorm,
	},
	{
		Field: FieldSubject, Table: TableSubjects, Column: SubjectsNorm,
		JoinOn: SubjectsRecordID, MARCPath: "650$a",
		RawColumn: SubjectsSubject, NormColumn: SubjectsNorm, FullText: true,
	},
	{
		Field: FieldLanguage, Table: TableLanguages, Column: LanguagesCode,
		JoinOn: LanguagesRecordID, MARCPath: "041$a",
		RawColumn: LanguagesCode,
	},
	{
		Field: FieldTitle, Table: TableTitles, Column: TitlesTitle,
		JoinOn: TitlesRecordID, MARCPath: "245$a",
		RawColumn: TitlesTitle, FullText: true,
	},
}

// Lookup returns the FieldSpec for field and whether it was found.
func Lookup(field FilterField) (FieldSpec, bool) {
	for _, spec := range FieldSpecs {
		if spec.Field == field {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// IsFullText reports whether field supports the CONTAINS operator.
func IsFullText(field FilterField) bool {
	spec, ok := Lookup(field)
	return ok && spec.FullText
}

// CurrentSchemaVersion is the schema version written to every records row at
// index time. Non-breaking changes (column add, table add, index add) bump
// MINOR with no rebuild required; breaking changes (rename, drop, type
// change) bump MAJOR and require a full rebuild from the enriched JSONL.
const CurrentSchemaVersion = "1.0"
