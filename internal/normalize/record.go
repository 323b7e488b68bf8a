package normalize

import "github.com/hagaybar/biblioplan/pkg/record"

// Aliases bundles the three curated alias maps the Normalizer consults.
// A nil field is valid: normalizeField falls through to casefold_strip for
// every value of that kind.
type Aliases struct {
	Place     AliasMap
	Publisher AliasMap
	Agent     AliasMap
}

// EnrichRecord runs every normalize_* rule over a CanonicalRecord's repeating
// fields and assembles the M2 layer, producing an EnrichedRecord. It is the
// entry point the "normalize" CLI stage calls per record (the indexer takes
// records that are already enriched); NormalizeDate/NormalizePlace/NormalizePublisher/NormalizeAgent/
// NormalizeSubject themselves stay pure and order-agnostic.
func EnrichRecord(r record.CanonicalRecord, aliases Aliases) record.EnrichedRecord {
	m2 := record.M2{
		ImprintsNorm: make([]record.ImprintNorm, len(r.Imprints)),
		AgentsNorm:   make([]record.AgentNorm, len(r.Agents)),
		SubjectsNorm: make([]record.SubjectNorm, len(r.Subjects)),
	}

	for i, imp := range r.Imprints {
		date := NormalizeDate(imp.Date.Value, imp.Date.SourcePath)
		place := NormalizePlace(imp.Place.Value, aliases.Place, imp.Place.SourcePath)
		pub := NormalizePublisher(imp.Publisher.Value, aliases.Publisher, imp.Publisher.SourcePath)

		m2.ImprintsNorm[i] = record.ImprintNorm{
			DateStart:           date.Start,
			DateEnd:             date.End,
			DateMethod:          string(date.Method),
			DateConfidence:      date.Confidence,
			PlaceNorm:           place.Value,
			PlaceMethod:         string(place.Method),
			PlaceConfidence:     place.Confidence,
			PublisherNorm:       pub.Value,
			PublisherMethod:     string(pub.Method),
			PublisherConfidence: pub.Confidence,
		}
	}

	for i, a := range r.Agents {
		n := NormalizeAgent(a.Name.Value, aliases.Agent, a.Name.SourcePath)
		m2.AgentsNorm[i] = record.AgentNorm{
			Norm:       n.Value,
			Method:     string(n.Method),
			Confidence: n.Confidence,
		}
	}

	for i, s := range r.Subjects {
		n := NormalizeSubject(s.Value, nil, s.SourcePath)
		m2.SubjectsNorm[i] = record.SubjectNorm{
			Norm:       n.Value,
			Method:     string(n.Method),
			Confidence: n.Confidence,
		}
	}

	return record.EnrichedRecord{CanonicalRecord: r, M2: m2}
}

// CollectFuzzyCandidates gathers every casefold_strip key produced for kind
// across a batch of already-enriched records, for use with SuggestAliases.
// kind must be "place", "publisher", or "agent".
func CollectFuzzyCandidates(records []record.EnrichedRecord, kind string) []string {
	var keys []string
	seen := make(map[string]struct{})
	add := func(method string, value *string) {
		if value == nil || method != kind+"_casefold_strip" {
			return
		}
		if _, ok := seen[*value]; ok {
			return
		}
		seen[*value] = struct{}{}
		keys = append(keys, *value)
	}
	for _, r := range records {
		for _, imp := range r.M2.ImprintsNorm {
			add(imp.PlaceMethod, imp.PlaceNorm)
			add(imp.PublisherMethod, imp.PublisherNorm)
		}
		for _, a := range r.M2.AgentsNorm {
			add(a.Method, a.Norm)
		}
	}
	return keys
}
