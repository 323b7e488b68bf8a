package query

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hagaybar/biblioplan/pkg/candidate"
)

// PersistRun writes plan.json, sql.txt, and candidate_set.json under
// baseDir/<run-id>, where run-id is a UTC timestamp with microsecond
// resolution (so two runs started in the same millisecond still sort and
// land in distinct directories). It returns the run directory on success.
func PersistRun(baseDir string, set candidate.Set) (string, error) {
	runID := time.Now().UTC().Format("20060102T150405.000000Z")
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("query: persist: mkdir %s: %w", runDir, err)
	}

	planJSON, err := json.MarshalIndent(set.QueryPlan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("query: persist: marshal plan: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "plan.json"), planJSON, 0o644); err != nil {
		return "", fmt.Errorf("query: persist: write plan.json: %w", err)
	}

	if err := os.WriteFile(filepath.Join(runDir, "sql.txt"), []byte(set.SQLExecuted), 0o644); err != nil {
		return "", fmt.Errorf("query: persist: write sql.txt: %w", err)
	}

	setJSON, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", fmt.Errorf("query: persist: marshal candidate set: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "candidate_set.json"), setJSON, 0o644); err != nil {
		return "", fmt.Errorf("query: persist: write candidate_set.json: %w", err)
	}

	return runDir, nil
}
