// Package marcxml implements a linear field walker over MARC XML records,
// producing the [record.CanonicalRecord] shape the Normalizer and Indexer
// consume. spec.md treats MARC parsing as an external collaborator; this
// package is the reference in-process implementation the corpus itself
// provides no standalone parser for.
package marcxml

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/hagaybar/biblioplan/pkg/record"
)

// xmlSubfield is one MARC XML <subfield> element.
type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// xmlControlfield is one MARC XML <controlfield> element.
type xmlControlfield struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// xmlDatafield is one MARC XML <datafield> element.
type xmlDatafield struct {
	Tag       string        `xml:"tag,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

// xmlRecord is one MARC XML <record> element.
type xmlRecord struct {
	Controlfields []xmlControlfield `xml:"controlfield"`
	Datafields    []xmlDatafield    `xml:"datafield"`
}

// Parse reads every <record> element from r and returns one CanonicalRecord
// per record, in document order. sourceFile is attached to every record for
// provenance; line numbers are assigned sequentially starting at 1 since
// MARC XML has no native concept of a "line".
func Parse(r io.Reader, sourceFile string) ([]record.CanonicalRecord, error) {
	dec := xml.NewDecoder(r)
	var out []record.CanonicalRecord
	lineNo := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marcxml: decode token: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}

		var xr xmlRecord
		if err := dec.DecodeElement(&xr, &start); err != nil {
			return nil, fmt.Errorf("marcxml: decode record: %w", err)
		}

		lineNo++
		out = append(out, convert(xr, sourceFile, lineNo))
	}

	return out, nil
}

// occurrenceTracker assigns "<tag>[<n>]" occurrence indices per tag, matching
// the source-path convention documented on [record.SourcedValue].
type occurrenceTracker struct {
	counts map[string]int
}

func newOccurrenceTracker() *occurrenceTracker {
	return &occurrenceTracker{counts: make(map[string]int)}
}

func (t *occurrenceTracker) next(tag string) int {
	n := t.counts[tag]
	t.counts[tag] = n + 1
	return n
}

func convert(xr xmlRecord, sourceFile string, lineNo int) record.CanonicalRecord {
	occ := newOccurrenceTracker()
	rec := record.CanonicalRecord{
		SourceFile:      sourceFile,
		JSONLLineNumber: lineNo,
	}

	for _, cf := range xr.Controlfields {
		if cf.Tag == "001" {
			rec.MMSID = cf.Value
		}
	}

	for _, df := range xr.Datafields {
		n := occ.next(df.Tag)

		switch {
		case df.Tag == "245":
			if sv, ok := sourcedSubfield(df, "a", n); ok {
				rec.Titles = append(rec.Titles, sv)
			}

		case df.Tag == "260" || df.Tag == "264":
			imp := record.Imprint{}
			if sv, ok := sourcedSubfield(df, "a", n); ok {
				imp.Place = sv
			}
			if sv, ok := sourcedSubfield(df, "b", n); ok {
				imp.Publisher = sv
			}
			if sv, ok := sourcedSubfield(df, "c", n); ok {
				imp.Date = sv
			}
			rec.Imprints = append(rec.Imprints, imp)

		case isAgentTag(df.Tag):
			if sv, ok := sourcedSubfield(df, "a", n); ok {
				rec.Agents = append(rec.Agents, record.Agent{
					Name: sv,
					Role: agentRole(df.Tag),
				})
			}

		case isSubjectTag(df.Tag):
			if sv, ok := sourcedSubfield(df, "a", n); ok {
				rec.Subjects = append(rec.Subjects, sv)
			}

		case df.Tag == "041":
			if sv, ok := sourcedSubfield(df, "a", n); ok {
				rec.Languages = append(rec.Languages, sv)
			}

		case isNoteTag(df.Tag):
			if sv, ok := sourcedSubfield(df, "a", n); ok {
				rec.Notes = append(rec.Notes, sv)
			}
		}
	}

	return rec
}

// sourcedSubfield reads subfield code from df and stamps it with the
// occurrence-indexed source path "<tag>[<n>]$<code>".
func sourcedSubfield(df xmlDatafield, code string, occurrence int) (record.SourcedValue, bool) {
	for _, sf := range df.Subfields {
		if sf.Code == code {
			return record.SourcedValue{
				Value:      sf.Value,
				SourcePath: fmt.Sprintf("%s[%d]$%s", df.Tag, occurrence, code),
			}, true
		}
	}
	return record.SourcedValue{}, false
}

// isAgentTag reports whether tag is a MARC 1xx (main entry) or 7xx (added
// entry) name heading.
func isAgentTag(tag string) bool {
	switch tag {
	case "100", "110", "111", "700", "710", "711":
		return true
	}
	return false
}

// agentRole labels an agent occurrence by its MARC tag family.
func agentRole(tag string) string {
	switch tag {
	case "100", "110", "111":
		return "main_entry"
	default:
		return "added_entry"
	}
}

// isSubjectTag reports whether tag is a MARC 6xx subject heading field.
func isSubjectTag(tag string) bool {
	return len(tag) == 3 && tag[0] == '6'
}

// isNoteTag reports whether tag is a MARC 5xx general note field.
func isNoteTag(tag string) bool {
	return len(tag) == 3 && tag[0] == '5'
}
