// Package template supplies the template-repository description that the
// assignment generator bases its output on.
package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ashureev/taskforge/internal/repo"
)

// Provider describes a template repository as a JSON-compatible object.
type Provider interface {
	Describe(ctx context.Context) (map[string]any, error)
}

// FileProvider reads a description from a .json, .yaml or .yml file.
type FileProvider struct {
	fs   afero.Fs
	path string
}

// NewFileProvider creates a FileProvider.
func NewFileProvider(fs afero.Fs, path string) *FileProvider {
	return &FileProvider{fs: fs, path: path}
}

// Describe implements Provider.
func (p *FileProvider) Describe(context.Context) (map[string]any, error) {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return nil, fmt.Errorf("read template description: %w", err)
	}

	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(p.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	case ".json":
		err = json.Unmarshal(data, &out)
	default:
		return nil, fmt.Errorf("unsupported template description format %q", filepath.Ext(p.path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse template description %s: %w", p.path, err)
	}
	return out, nil
}

// RepoProvider clones a repository once and describes it by inspection.
// The first successful description is cached.
type RepoProvider struct {
	cloner    *repo.Cloner
	inspector *repo.Inspector
	url       string
	branch    string
	dir       string
	query     string

	mu     sync.Mutex
	cached map[string]any
}

// NewRepoProvider creates a RepoProvider. An empty dir clones under the
// cloner's base directory.
func NewRepoProvider(cloner *repo.Cloner, inspector *repo.Inspector, url, branch, dir, query string) *RepoProvider {
	return &RepoProvider{
		cloner:    cloner,
		inspector: inspector,
		url:       url,
		branch:    branch,
		dir:       dir,
		query:     query,
	}
}

// Describe implements Provider. A clone left by an earlier run is reused.
func (p *RepoProvider) Describe(ctx context.Context) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}

	res := p.cloner.Clone(ctx, p.url, p.dir, p.branch)
	if !res.Success && !errors.Is(res.Err, repo.ErrTargetExists) {
		return nil, fmt.Errorf("clone template repository: %w", res.Err)
	}
	if !res.Success {
		slog.Info("Reusing existing template clone", "dir", res.RepoDir)
	}

	inspection, err := p.inspector.Inspect(res.RepoDir, p.query)
	if err != nil {
		return nil, fmt.Errorf("inspect template repository: %w", err)
	}

	described, err := toMap(inspection)
	if err != nil {
		return nil, err
	}
	described["url"] = p.url
	if p.branch != "" {
		described["branch"] = p.branch
	}
	p.cached = described
	return described, nil
}

// StaticProvider returns a fixed description.
type StaticProvider struct {
	Description map[string]any
}

// Describe implements Provider.
func (p StaticProvider) Describe(context.Context) (map[string]any, error) {
	return p.Description, nil
}

// Default is used when no template repository is configured.
func Default() StaticProvider {
	return StaticProvider{Description: map[string]any{
		"name":        "service-template",
		"description": "Minimal service skeleton with source, tests and build configuration.",
		"structure": map[string]any{
			"src":       map[string]any{},
			"tests":     map[string]any{},
			"README.md": nil,
			"Makefile":  nil,
		},
		"conventions": []any{
			"Source code lives under src/",
			"Tests live under tests/ and run with a single make target",
			"README.md documents setup and submission",
		},
	}}
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode template description: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode template description: %w", err)
	}
	return out, nil
}
