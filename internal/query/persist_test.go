package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hagaybar/biblioplan/pkg/candidate"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

func TestPersistRun_WritesAllThreeFiles(t *testing.T) {
	base := t.TempDir()
	set := candidate.Set{
		QueryText:   "books printed in paris",
		QueryPlan:   queryplan.QueryPlan{PlanVersion: queryplan.Version, Intent: "search"},
		SQLExecuted: "SELECT 1",
		Candidates:  []candidate.Candidate{{RecordID: "mms1"}},
		TotalCount:  1,
	}

	runDir, err := PersistRun(base, set)
	if err != nil {
		t.Fatalf("PersistRun: %v", err)
	}

	for _, name := range []string{"plan.json", "sql.txt", "candidate_set.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestPersistRun_DistinctRunsGetDistinctDirectories(t *testing.T) {
	base := t.TempDir()
	set := candidate.Set{QueryPlan: queryplan.QueryPlan{PlanVersion: queryplan.Version}}

	dir1, err := PersistRun(base, set)
	if err != nil {
		t.Fatalf("PersistRun (1st): %v", err)
	}
	time.Sleep(2 * time.Microsecond)
	dir2, err := PersistRun(base, set)
	if err != nil {
		t.Fatalf("PersistRun (2nd): %v", err)
	}
	if dir1 == dir2 {
		t.Errorf("expected distinct run directories, got %q twice", dir1)
	}
}
