// Command bibctl is the minimal CLI surface spec.md §6.2 describes for
// the offline pipeline stages (parse/normalize/index) and for a one-shot
// plan-and-execute query, as distinct from bibliod's long-running chat
// server. Each subcommand is a thin wrapper over the same packages bibliod
// wires at request time; none of them hold state between invocations beyond
// what the Plan Cache and index database already persist.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/index"
	"github.com/hagaybar/biblioplan/internal/normalize"
	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/internal/planner/cache"
	"github.com/hagaybar/biblioplan/internal/planner/llmplan"
	"github.com/hagaybar/biblioplan/internal/query"
	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/pkg/marcxml"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
	"github.com/hagaybar/biblioplan/pkg/provider/llm/openai"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
	"github.com/hagaybar/biblioplan/pkg/record"
)

// Exit codes per spec.md §6.2.
const (
	exitOK             = 0
	exitOther          = 1
	exitValidation     = 2
	exitDependencyMiss = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitValidation
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var err error
	switch args[0] {
	case "parse":
		err = runParse(args[1:])
	case "normalize":
		err = runNormalize(args[1:])
	case "index":
		err = runIndex(ctx, args[1:])
	case "query":
		err = runQuery(ctx, args[1:])
	default:
		usage()
		return exitValidation
	}

	if err == nil {
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "bibctl: %v\n", err)
	return exitCodeFor(err)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  bibctl parse <marc-xml> <out.jsonl>
  bibctl normalize <in.jsonl> <out.jsonl> [--place-alias FILE] [--publisher-alias FILE] [--agent-alias FILE]
  bibctl index <enriched.jsonl> <db-dsn> <schema.sql>
  bibctl query "<text>" [--cache FILE] [--runs-dir DIR]`)
}

// validationError marks a user-input mistake (wrong argument count,
// malformed record, unknown filter field) as distinct from a missing
// dependency or an unexpected internal failure.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

// dependencyError marks an unreachable external collaborator: a database
// that will not connect, or a credential the NL step needs and does not
// have.
type dependencyError struct{ msg string }

func (e *dependencyError) Error() string { return e.msg }

func exitCodeFor(err error) int {
	var ve *validationError
	var de *dependencyError
	var pie *planner.PlanInvalidError
	var pue *planner.PlanUnsupportedError
	var nle *planner.NLUnavailableError
	switch {
	case errors.As(err, &ve), errors.As(err, &pie), errors.As(err, &pue):
		return exitValidation
	case errors.As(err, &de), errors.As(err, &nle):
		return exitDependencyMiss
	default:
		return exitOther
	}
}

// ── parse ──────────────────────────────────────────────────────────────────

func runParse(args []string) error {
	if len(args) != 2 {
		return &validationError{"parse requires <marc-xml> <out.jsonl>"}
	}
	inPath, outPath := args[0], args[1]

	in, err := os.Open(inPath)
	if err != nil {
		return &validationError{fmt.Sprintf("open %s: %v", inPath, err)}
	}
	defer in.Close()

	records, err := marcxml.Parse(in, inPath)
	if err != nil {
		return &validationError{fmt.Sprintf("parse %s: %v", inPath, err)}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", outPath, err)
	}

	fmt.Printf("parsed %d records -> %s\n", len(records), outPath)
	return nil
}

// ── normalize ──────────────────────────────────────────────────────────────

func runNormalize(args []string) error {
	var placeAlias, publisherAlias, agentAlias string
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--place-alias":
			i++
			if i >= len(args) {
				return &validationError{"--place-alias requires a value"}
			}
			placeAlias = args[i]
		case "--publisher-alias":
			i++
			if i >= len(args) {
				return &validationError{"--publisher-alias requires a value"}
			}
			publisherAlias = args[i]
		case "--agent-alias":
			i++
			if i >= len(args) {
				return &validationError{"--agent-alias requires a value"}
			}
			agentAlias = args[i]
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) != 2 {
		return &validationError{"normalize requires <in.jsonl> <out.jsonl>"}
	}
	inPath, outPath := positional[0], positional[1]

	aliases, err := loadAliases(placeAlias, publisherAlias, agentAlias)
	if err != nil {
		return err
	}

	in, err := os.Open(inPath)
	if err != nil {
		return &validationError{fmt.Sprintf("open %s: %v", inPath, err)}
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var casefoldKeys []string
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var canonical record.CanonicalRecord
		if err := json.Unmarshal(line, &canonical); err != nil {
			return &validationError{fmt.Sprintf("%s: line %d: %v", inPath, n+1, err)}
		}
		enriched := normalize.EnrichRecord(canonical, aliases)
		for _, m := range enriched.M2.ImprintsNorm {
			if strings.HasSuffix(m.PlaceMethod, "casefold_strip") && m.PlaceNorm != nil {
				casefoldKeys = append(casefoldKeys, *m.PlaceNorm)
			}
		}
		if err := enc.Encode(enriched); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", outPath, err)
	}

	if suggestions := normalize.SuggestAliases(casefoldKeys, aliases.Place); len(suggestions) > 0 {
		normalize.LogSuggestions(suggestions)
	}

	fmt.Printf("normalized %d records -> %s\n", n, outPath)
	return nil
}

func loadAliases(placePath, publisherPath, agentPath string) (normalize.Aliases, error) {
	var a normalize.Aliases
	var err error
	if placePath != "" {
		if a.Place, err = normalize.LoadAliasMap(placePath); err != nil {
			return a, &validationError{err.Error()}
		}
	}
	if publisherPath != "" {
		if a.Publisher, err = normalize.LoadAliasMap(publisherPath); err != nil {
			return a, &validationError{err.Error()}
		}
	}
	if agentPath != "" {
		if a.Agent, err = normalize.LoadAliasMap(agentPath); err != nil {
			return a, &validationError{err.Error()}
		}
	}
	return a, nil
}

// ── index ──────────────────────────────────────────────────────────────────

func runIndex(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return &validationError{"index requires <enriched.jsonl> <db-dsn> <schema.sql>"}
	}
	inPath, dsn, schemaPath := args[0], args[1], args[2]

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return &dependencyError{fmt.Sprintf("connect %s: %v", dsn, err)}
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return &dependencyError{fmt.Sprintf("ping %s: %v", dsn, err)}
	}

	if err := index.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// schema.sql is an optional supplemental DDL file (e.g. operator-added
	// views or indexes beyond the Schema Contract's own migration); an
	// empty or "-" path skips it.
	if schemaPath != "" && schemaPath != "-" {
		ddl, err := os.ReadFile(schemaPath)
		if err != nil {
			return &validationError{fmt.Sprintf("read %s: %v", schemaPath, err)}
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", schemaPath, err)
		}
	}

	in, err := os.Open(inPath)
	if err != nil {
		return &validationError{fmt.Sprintf("open %s: %v", inPath, err)}
	}
	defer in.Close()

	ix := index.New(pool)
	const batchSize = 500
	batch := make([]record.EnrichedRecord, 0, batchSize)
	total := 0

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ix.IndexBatch(ctx, batch); err != nil {
			return fmt.Errorf("index batch at record %d: %w", total, err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	lineNo := 0
	for sc.Scan() {
		line := sc.Bytes()
		lineNo++
		if len(line) == 0 {
			continue
		}
		var r record.EnrichedRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return &validationError{fmt.Sprintf("%s: line %d: %v", inPath, lineNo, err)}
		}
		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	if err := flush(); err != nil {
		return err
	}

	fmt.Printf("indexed %d records into %s\n", total, dsn)
	return nil
}

// ── query ──────────────────────────────────────────────────────────────────

func runQuery(ctx context.Context, args []string) error {
	cachePath := "plan_cache.jsonl"
	runsDir := "runs"
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--cache":
			i++
			if i >= len(args) {
				return &validationError{"--cache requires a value"}
			}
			cachePath = args[i]
		case "--runs-dir":
			i++
			if i >= len(args) {
				return &validationError{"--runs-dir requires a value"}
			}
			runsDir = args[i]
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) == 0 {
		return &validationError{`query requires "<text>"`}
	}
	text := strings.Join(positional, " ")

	dsn := os.Getenv("BIBLIOGRAPHIC_DB_PATH")
	if dsn == "" {
		return &dependencyError{"BIBLIOGRAPHIC_DB_PATH is not set"}
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return &dependencyError{"OPENAI_API_KEY is not set — plan compilation requires an NL provider credential"}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return &dependencyError{fmt.Sprintf("connect %s: %v", dsn, err)}
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return &dependencyError{fmt.Sprintf("ping %s: %v", dsn, err)}
	}

	model := os.Getenv("BIBLIOGRAPHIC_NL_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	provider, err := openai.New(apiKey, model)
	if err != nil {
		return fmt.Errorf("build nl provider: %w", err)
	}
	group := resilience.NewFallbackGroup[llm.Provider](provider, "openai", resilience.FallbackConfig{})
	interpreter := llmplan.New(group)

	planCache, err := cache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("open plan cache %s: %w", cachePath, err)
	}

	key := cache.Key(text)
	entry, err := planCache.GetOrCompile(key, model, func() (queryplan.QueryPlan, error) {
		result, err := interpreter.Interpret(ctx, text)
		if err != nil {
			return queryplan.QueryPlan{}, err
		}
		return result.QueryPlan, nil
	})
	if err != nil {
		return err
	}

	executor := query.New(pool)
	set, err := executor.Execute(ctx, text, entry.Plan)
	if err != nil {
		return fmt.Errorf("execute plan: %w", err)
	}

	runDir, err := query.PersistRun(runsDir, set)
	if err != nil {
		return fmt.Errorf("persist run: %w", err)
	}

	fmt.Println(runDir)
	return nil
}
