package cache

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

func TestKey_NormalizesEquivalentQuestions(t *testing.T) {
	a := Key("  Books   printed In Paris  ")
	b := Key("books printed in paris")
	if a != b {
		t.Fatalf("Key(%q) != Key(%q): %q vs %q", "  Books   printed In Paris  ", "books printed in paris", a, b)
	}
}

func TestCache_GetOrCompileCallsFnOnceForConcurrentCallers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.jsonl")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var calls int32
	key := Key("books printed in paris")

	var wg sync.WaitGroup
	results := make([]Entry, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.GetOrCompile(key, "test-model", func() (queryplan.QueryPlan, error) {
				atomic.AddInt32(&calls, 1)
				return queryplan.QueryPlan{PlanVersion: queryplan.Version, Intent: "search"}, nil
			})
			if err != nil {
				t.Errorf("GetOrCompile: %v", err)
				return
			}
			results[i] = e
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	for i, e := range results {
		if e.Key != key {
			t.Errorf("results[%d].Key = %q, want %q", i, e.Key, key)
		}
	}
}

func TestCache_OpenReloadsPersistedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.jsonl")
	c1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := Key("books printed in paris")
	if _, err := c1.GetOrCompile(key, "test-model", func() (queryplan.QueryPlan, error) {
		return queryplan.QueryPlan{PlanVersion: queryplan.Version, Intent: "search"}, nil
	}); err != nil {
		t.Fatalf("GetOrCompile: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e, ok := c2.Get(key)
	if !ok {
		t.Fatal("expected entry to survive reopen")
	}
	if e.Plan.Intent != "search" {
		t.Errorf("Plan.Intent = %q, want %q", e.Plan.Intent, "search")
	}
}
