package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hagaybar/biblioplan/pkg/enrich"
)

func TestSource_LookupByXref_ReturnsEntityOnHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xref" || r.URL.Query().Get("authority_id") != "viaf123" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(kbEntity{ID: "Q1", Label: "Christophe Plantin", Score: 1})
	}))
	defer srv.Close()

	src, err := NewSource(enrich.SourceVIAF, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	entity, ok, err := src.lookupByXref(context.Background(), "viaf123")
	if err != nil {
		t.Fatalf("lookupByXref: %v", err)
	}
	if !ok || entity.ID != "Q1" {
		t.Errorf("entity = %+v, ok = %v", entity, ok)
	}
}

func TestSource_LookupByXref_404IsCleanMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := NewSource(enrich.SourceLOC, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	_, ok, err := src.lookupByXref(context.Background(), "missing")
	if err != nil {
		t.Fatalf("lookupByXref: %v", err)
	}
	if ok {
		t.Error("expected clean miss on 404")
	}
}

func TestSource_LookupByName_RejectsBelowDisambiguationThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(kbEntity{ID: "Q2", Label: "Someone Else", Score: 0.5})
	}))
	defer srv.Close()

	src, err := NewSource(enrich.SourceWikidata, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	_, ok, err := src.lookupByName(context.Background(), "agent", "Plantin")
	if err != nil {
		t.Fatalf("lookupByName: %v", err)
	}
	if ok {
		t.Error("expected lookupByName to reject a result below disambiguationThreshold")
	}
}

func TestSource_LookupByName_AcceptsAtOrAboveThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(kbEntity{ID: "Q3", Label: "Christophe Plantin", Score: disambiguationThreshold})
	}))
	defer srv.Close()

	src, err := NewSource(enrich.SourceWikidata, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	entity, ok, err := src.lookupByName(context.Background(), "agent", "Plantin")
	if err != nil {
		t.Fatalf("lookupByName: %v", err)
	}
	if !ok || entity.ID != "Q3" {
		t.Errorf("entity = %+v, ok = %v", entity, ok)
	}
}

func TestSource_FetchEntity_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src, err := NewSource(enrich.SourceNLI, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	_, _, err = src.lookupByXref(context.Background(), "x")
	if err == nil {
		t.Error("expected error on non-OK status")
	}
}
