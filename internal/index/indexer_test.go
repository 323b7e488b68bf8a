package index

import (
	"testing"

	"github.com/hagaybar/biblioplan/pkg/record"
)

func TestValidateRecord_RejectsMismatchedImprintsNorm(t *testing.T) {
	r := record.EnrichedRecord{
		CanonicalRecord: record.CanonicalRecord{
			MMSID:    "mms1",
			Imprints: []record.Imprint{{}, {}},
		},
		M2: record.M2{
			ImprintsNorm: []record.ImprintNorm{{}},
		},
	}

	if err := validateRecord(r); err == nil {
		t.Fatal("expected error for mismatched imprints/imprints_norm lengths")
	}
}

func TestValidateRecord_RejectsMismatchedSubjectsNorm(t *testing.T) {
	r := record.EnrichedRecord{
		CanonicalRecord: record.CanonicalRecord{
			MMSID:    "mms1",
			Subjects: []record.SourcedValue{{Value: "alchemy"}},
		},
	}

	if err := validateRecord(r); err == nil {
		t.Fatal("expected error for mismatched subjects/subjects_norm lengths")
	}
}

func TestValidateRecord_RejectsMismatchedAgentsNorm(t *testing.T) {
	r := record.EnrichedRecord{
		CanonicalRecord: record.CanonicalRecord{
			MMSID:  "mms1",
			Agents: []record.Agent{{Name: record.SourcedValue{Value: "Plantin"}}},
		},
	}

	if err := validateRecord(r); err == nil {
		t.Fatal("expected error for mismatched agents/agents_norm lengths")
	}
}

func TestValidateRecord_RejectsEmptyMMSID(t *testing.T) {
	r := record.EnrichedRecord{}
	if err := validateRecord(r); err == nil {
		t.Fatal("expected error for empty mms_id")
	}
}

func TestValidateRecord_AcceptsAlignedRecord(t *testing.T) {
	r := record.EnrichedRecord{
		CanonicalRecord: record.CanonicalRecord{
			MMSID:    "mms1",
			Imprints: []record.Imprint{{}},
			Subjects: []record.SourcedValue{{Value: "alchemy"}},
			Agents:   []record.Agent{{Name: record.SourcedValue{Value: "Plantin"}}},
		},
		M2: record.M2{
			ImprintsNorm: []record.ImprintNorm{{}},
			SubjectsNorm: []record.SubjectNorm{{}},
			AgentsNorm:   []record.AgentNorm{{}},
		},
	}

	if err := validateRecord(r); err != nil {
		t.Fatalf("unexpected error for well-formed record: %v", err)
	}
}
