package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ScenarioExtensions lists the file extensions treated as scenarios.
var ScenarioExtensions = []string{".yaml", ".yml", ".cue"}

// ScenarioNotFoundError is returned when a scenario path does not exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns every scenario file under dir, sorted. Golden
// fixture directories are skipped.
func FindScenarios(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isScenarioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range ScenarioExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// Outcome is the result of loading and running one scenario file.
type Outcome struct {
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"` // load or run failure
}

// Passed reports whether the scenario loaded, ran and passed.
func (o Outcome) Passed() bool {
	return o.Error == "" && o.Result != nil && o.Result.Pass
}

// BatchResult summarizes a RunAll call.
type BatchResult struct {
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`  // ran, assertions failed
	Errored  int       `json:"errored"` // could not load or run
	Outcomes []Outcome `json:"outcomes"`
}

// RunAll loads and runs the scenario files concurrently, at most
// cfg.Parallelism at a time. Outcomes are reported in input order. Only a
// cancelled ctx makes RunAll itself fail; per-file problems are recorded
// in the outcomes.
func RunAll(ctx context.Context, paths []string, cfg Config) (*BatchResult, error) {
	outcomes := make([]Outcome, len(paths))
	logger := cfg.logger()

	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = runFile(gctx, path, cfg)
			if outcomes[i].Error != "" {
				logger.Warn("scenario errored", "path", path, "error", outcomes[i].Error)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scenario batch interrupted: %w", err)
	}

	batch := &BatchResult{Total: len(paths), Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			batch.Errored++
		case o.Result.Pass:
			batch.Passed++
		default:
			batch.Failed++
		}
	}
	return batch, nil
}

func runFile(ctx context.Context, path string, cfg Config) Outcome {
	scenario, err := LoadScenario(path)
	if err != nil {
		return Outcome{Path: path, Error: err.Error()}
	}
	result, err := Run(ctx, scenario, cfg)
	if err != nil {
		return Outcome{Path: path, Error: err.Error()}
	}
	return Outcome{Path: path, Result: result}
}
