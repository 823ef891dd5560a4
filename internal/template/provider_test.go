package template

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/ashureev/taskforge/internal/repo"
)

func TestFileProvider(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/t/template.yaml", []byte("name: api-template\nlayers:\n  - handlers\n  - store\nmeta:\n  lang: go\n"), 0o644)
	_ = afero.WriteFile(fs, "/t/template.json", []byte(`{"name": "api-template", "layers": ["handlers", "store"], "meta": {"lang": "go"}}`), 0o644)
	_ = afero.WriteFile(fs, "/t/template.toml", []byte(`name = "x"`), 0o644)

	want := map[string]any{
		"name":   "api-template",
		"layers": []any{"handlers", "store"},
		"meta":   map[string]any{"lang": "go"},
	}
	for _, path := range []string{"/t/template.yaml", "/t/template.json"} {
		got, err := NewFileProvider(fs, path).Describe(context.Background())
		if err != nil {
			t.Fatalf("Describe(%s) error = %v", path, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Describe(%s) mismatch (-want +got):\n%s", path, diff)
		}
	}

	if _, err := NewFileProvider(fs, "/t/template.toml").Describe(context.Background()); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := NewFileProvider(fs, "/t/missing.json").Describe(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

type writingCommander struct {
	fs    afero.Fs
	calls int
}

func (w *writingCommander) Run(_ context.Context, name string, args ...string) (string, error) {
	w.calls++
	if len(args) == 3 && args[0] == "clone" {
		dir := args[2]
		_ = afero.WriteFile(w.fs, dir+"/README.md", []byte("# Cloned"), 0o644)
		_ = afero.WriteFile(w.fs, dir+"/main.go", []byte("package main\n"), 0o644)
	}
	return "", nil
}

func TestRepoProviderClonesOnceAndCaches(t *testing.T) {
	fs := afero.NewMemMapFs()
	cmd := &writingCommander{fs: fs}
	p := NewRepoProvider(
		repo.NewClonerWithCommander(fs, "/clones", cmd),
		repo.NewInspector(fs),
		"owner/template", "", "", "",
	)

	first, err := p.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if first["readme"] != "# Cloned" || first["url"] != "owner/template" {
		t.Errorf("unexpected description: %v", first)
	}
	callsAfterFirst := cmd.calls

	if _, err := p.Describe(context.Background()); err != nil {
		t.Fatalf("second Describe() error = %v", err)
	}
	if cmd.calls != callsAfterFirst {
		t.Errorf("expected cached description, commands ran again")
	}
}

func TestRepoProviderReusesExistingClone(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/clones/template/README.md", []byte("# Existing"), 0o644)
	cmd := &writingCommander{fs: fs}
	p := NewRepoProvider(
		repo.NewClonerWithCommander(fs, "/clones", cmd),
		repo.NewInspector(fs),
		"owner/template", "", "", "",
	)

	got, err := p.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got["readme"] != "# Existing" {
		t.Errorf("readme = %v", got["readme"])
	}
	if cmd.calls != 0 {
		t.Errorf("expected no commands, got %d", cmd.calls)
	}
}

func TestDefaultDescription(t *testing.T) {
	got, err := Default().Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if !strings.Contains(got["description"].(string), "service skeleton") {
		t.Errorf("unexpected default: %v", got)
	}
}
