// Package record defines the shared bibliographic record types that flow
// between the external MARC parser, the Normalizer, the Indexer, and the
// Executor's Evidence construction. They are the lingua franca between those
// stages — each stage's own package defines its working types, but the
// cross-cutting record shapes live here to avoid circular imports.
package record

// SourcedValue pairs a raw MARC value with the source path it was read from.
// SourcePath encodes "<field>[<occurrence>]$<subfield>", e.g. "500[1]$a".
// Immutable once constructed — normalization never mutates the raw value.
type SourcedValue struct {
	Value      string `json:"value"`
	SourcePath string `json:"source_path"`
}

// Imprint is a single occurrence of a MARC 260/264 imprint statement.
type Imprint struct {
	Place     SourcedValue `json:"place"`
	Publisher SourcedValue `json:"publisher"`
	Date      SourcedValue `json:"date"`
}

// Agent is a single occurrence of a MARC 1xx/7xx name heading.
type Agent struct {
	Name SourcedValue `json:"name"`
	Role string       `json:"role,omitempty"`
}

// CanonicalRecord is the M1 layer: one parsed MARC record with every
// occurrence-ordered repeating field preserved and every leaf value wrapped
// in a SourcedValue. The parser (an external collaborator) produces this
// once per record; it is never mutated after ingestion.
type CanonicalRecord struct {
	MMSID           string         `json:"mms_id"`
	SourceFile      string         `json:"source_file"`
	JSONLLineNumber int            `json:"jsonl_line_number"`
	Titles          []SourcedValue `json:"titles"`
	Imprints        []Imprint      `json:"imprints"`
	Agents          []Agent        `json:"agents"`
	Subjects        []SourcedValue `json:"subjects"`
	Languages       []SourcedValue `json:"languages"`
	Notes           []SourcedValue `json:"notes"`
}

// ImprintNorm is the normalized companion to a single Imprint, produced by
// the Normalizer. Array index must match the parallel Imprints slice.
type ImprintNorm struct {
	DateStart          *int    `json:"date_start"`
	DateEnd            *int    `json:"date_end"`
	DateMethod         string  `json:"date_method"`
	DateConfidence     float64 `json:"date_confidence"`
	PlaceNorm          *string `json:"place_norm"`
	PlaceMethod        string  `json:"place_method"`
	PlaceConfidence    float64 `json:"place_confidence"`
	PublisherNorm      *string `json:"publisher_norm"`
	PublisherMethod    string  `json:"publisher_method"`
	PublisherConfidence float64 `json:"publisher_confidence"`
}

// AgentNorm is the normalized companion to a single Agent.
type AgentNorm struct {
	Norm       *string `json:"agent_norm"`
	Method     string  `json:"agent_method"`
	Confidence float64 `json:"agent_confidence"`
}

// SubjectNorm is the normalized companion to a single subject heading.
type SubjectNorm struct {
	Norm       *string `json:"subject_norm"`
	Method     string  `json:"subject_method"`
	Confidence float64 `json:"subject_confidence"`
}

// M2 holds every field the Normalizer adds. Its slices are parallel to the
// corresponding CanonicalRecord slices; array indices must match.
type M2 struct {
	ImprintsNorm []ImprintNorm `json:"imprints_norm"`
	AgentsNorm   []AgentNorm   `json:"agents_norm"`
	SubjectsNorm []SubjectNorm `json:"subjects_norm"`
}

// EnrichedRecord is a CanonicalRecord plus its M2 normalization layer. The M1
// fields are read-only at this stage: normalize never renames, removes, or
// reorders them.
type EnrichedRecord struct {
	CanonicalRecord
	M2 M2 `json:"m2"`
}
