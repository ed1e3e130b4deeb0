package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/factgraph/factgraph/internal/pipeline"
)

// fakeRunner records the paths it was asked to run and fails the ones
// listed in failing.
type fakeRunner struct {
	mu      sync.Mutex
	ran     []string
	failing map[string]bool
}

func (r *fakeRunner) Run(ctx context.Context, corpusPath string) (*pipeline.RunResult, error) {
	r.mu.Lock()
	r.ran = append(r.ran, corpusPath)
	r.mu.Unlock()
	if r.failing[corpusPath] {
		return nil, errors.New("corrupt corpus")
	}
	return &pipeline.RunResult{CorpusPath: corpusPath}, nil
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	runner := &fakeRunner{failing: map[string]bool{"b.json": true}}
	b := NewBatchProcessor(runner, 2)

	results := b.ProcessPaths(context.Background(), []string{"a.json", "b.json", "c.json"})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	byPath := make(map[string]*CorpusResult)
	for _, r := range results {
		byPath[r.Path] = r
	}
	if byPath["a.json"].GetError() != nil || byPath["c.json"].GetError() != nil {
		t.Error("healthy corpora reported errors")
	}
	if byPath["b.json"].GetError() == nil {
		t.Error("failing corpus reported no error")
	}
	if byPath["a.json"].Run == nil || byPath["a.json"].Run.CorpusPath != "a.json" {
		t.Errorf("run result = %+v", byPath["a.json"].Run)
	}

	sort.Strings(runner.ran)
	if len(runner.ran) != 3 {
		t.Errorf("runner invoked %d times, want 3", len(runner.ran))
	}
}

func TestBatchProcessor_EmptyInput(t *testing.T) {
	b := NewBatchProcessor(&fakeRunner{}, 2)
	if results := b.ProcessPaths(context.Background(), nil); len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestReadPathsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpora.txt")
	content := `# evaluation corpora
a.json

b.json
a.json
  c.json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := ReadPathsFromFile(path)
	if err != nil {
		t.Fatalf("ReadPathsFromFile: %v", err)
	}
	want := []string{"a.json", "b.json", "c.json"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestReadPathsFromFile_Missing(t *testing.T) {
	if _, err := ReadPathsFromFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("missing list file accepted")
	}
}
