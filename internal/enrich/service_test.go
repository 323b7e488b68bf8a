package enrich

import (
	"testing"
	"time"

	"github.com/hagaybar/biblioplan/pkg/enrich"
)

func TestBuildResult_SetsIDFieldForSourceOnly(t *testing.T) {
	s := &Service{ttl: time.Hour}
	entity := kbEntity{ID: "Q42", Label: "Christophe Plantin", Score: 0.9}

	result := s.buildResult("agent", "Plantin, Christophe", "plantin, christophe", enrich.SourceWikidata, entity)
	if result.WikidataID != "Q42" {
		t.Errorf("WikidataID = %q, want Q42", result.WikidataID)
	}
	if result.VIAFID != "" || result.LOCID != "" || result.NLIID != "" {
		t.Errorf("expected only WikidataID set, got %+v", result)
	}

	result = s.buildResult("agent", "Plantin, Christophe", "plantin, christophe", enrich.SourceVIAF, entity)
	if result.VIAFID != "Q42" || result.WikidataID != "" {
		t.Errorf("expected only VIAFID set, got %+v", result)
	}
}

func TestBuildResult_ExpiresAfterConfiguredTTL(t *testing.T) {
	s := &Service{ttl: 5 * time.Minute}
	result := s.buildResult("place", "Antwerp", "antwerp", enrich.SourceLOC, kbEntity{ID: "n1"})

	if !result.ExpiresAt.After(result.FetchedAt) {
		t.Error("expected ExpiresAt after FetchedAt")
	}
	if got := result.ExpiresAt.Sub(result.FetchedAt); got != 5*time.Minute {
		t.Errorf("ExpiresAt - FetchedAt = %v, want 5m", got)
	}
}

func TestBuildResult_CarriesPersonAndPlaceInfoThrough(t *testing.T) {
	s := &Service{ttl: time.Hour}
	entity := kbEntity{
		ID:         "n1",
		PersonInfo: map[string]any{"birth_year": "1520"},
	}
	result := s.buildResult("agent", "Plantin", "plantin", enrich.SourceNLI, entity)
	if result.PersonInfo["birth_year"] != "1520" {
		t.Errorf("PersonInfo not carried through: %+v", result.PersonInfo)
	}
	if result.NLIID != "n1" {
		t.Errorf("NLIID = %q, want n1", result.NLIID)
	}
}
