package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

type mockCommander struct {
	calls     [][]string
	responses map[string]error
}

func (m *mockCommander) Run(_ context.Context, name string, args ...string) (string, error) {
	call := append([]string{name}, args...)
	m.calls = append(m.calls, call)
	key := strings.Join(call, " ")
	for prefix, err := range m.responses {
		if strings.HasPrefix(key, prefix) {
			return "", err
		}
	}
	return "", nil
}

func TestCloneIntoExistingDirectoryRunsNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/repos/template", 0o755); err != nil {
		t.Fatal(err)
	}
	cmd := &mockCommander{}
	c := NewClonerWithCommander(fs, "/repos", cmd)

	res := c.Clone(context.Background(), "owner/template", "", "")

	if res.Success {
		t.Fatal("expected failure for existing target")
	}
	if !errors.Is(res.Err, ErrTargetExists) {
		t.Errorf("expected ErrTargetExists, got %v", res.Err)
	}
	if len(cmd.calls) != 0 {
		t.Errorf("expected no commands, got %v", cmd.calls)
	}
}

func TestCloneSuccessWithBranch(t *testing.T) {
	fs := afero.NewMemMapFs()
	cmd := &mockCommander{}
	c := NewClonerWithCommander(fs, "/repos", cmd)

	res := c.Clone(context.Background(), "owner/template.git", "", "develop")
	if !res.Success {
		t.Fatalf("Clone() failed: %s", res.Message)
	}
	if res.RepoDir != "/repos/template" {
		t.Errorf("RepoDir = %q", res.RepoDir)
	}

	want := [][]string{
		{"git", "--version"},
		{"git", "clone", "https://github.com/owner/template.git", "/repos/template"},
		{"git", "-C", "/repos/template", "checkout", "develop"},
	}
	if diff := cmp.Diff(want, cmd.calls); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneGitMissing(t *testing.T) {
	cmd := &mockCommander{responses: map[string]error{"git --version": errors.New("exec: not found")}}
	c := NewClonerWithCommander(afero.NewMemMapFs(), "/repos", cmd)

	res := c.Clone(context.Background(), "https://github.com/owner/x", "", "")
	if res.Success || !errors.Is(res.Err, ErrGitNotInstalled) {
		t.Errorf("expected ErrGitNotInstalled, got %+v", res)
	}
	if len(cmd.calls) != 1 {
		t.Errorf("expected only the git version check, got %v", cmd.calls)
	}
}

func TestCloneFailure(t *testing.T) {
	cmd := &mockCommander{responses: map[string]error{"git clone": errors.New("repository not found")}}
	c := NewClonerWithCommander(afero.NewMemMapFs(), "/repos", cmd)

	res := c.Clone(context.Background(), "https://github.com/owner/missing", "/tmp/out", "main")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Message, "repository not found") {
		t.Errorf("Message = %q", res.Message)
	}
	for _, call := range cmd.calls {
		if call[1] == "-C" {
			t.Error("checkout must not run after a failed clone")
		}
	}
}

func TestCloneCheckoutFailureKeepsClone(t *testing.T) {
	cmd := &mockCommander{responses: map[string]error{"git -C": errors.New("pathspec 'nope' did not match")}}
	c := NewClonerWithCommander(afero.NewMemMapFs(), "/repos", cmd)

	res := c.Clone(context.Background(), "owner/repo", "", "nope")
	if !res.Success {
		t.Fatalf("expected success, got %s", res.Message)
	}
	if !strings.Contains(res.Message, "checkout of branch nope failed") {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestCloneInvalidURL(t *testing.T) {
	cmd := &mockCommander{}
	c := NewClonerWithCommander(afero.NewMemMapFs(), "/repos", cmd)

	res := c.Clone(context.Background(), "justaname", "", "")
	if !errors.Is(res.Err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", res.Err)
	}
	if len(cmd.calls) != 0 {
		t.Errorf("expected no commands, got %v", cmd.calls)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "owner/repo", want: "https://github.com/owner/repo"},
		{in: "https://gitlab.com/a/b", want: "https://gitlab.com/a/b"},
		{in: "git@github.com:a/b.git", want: "git@github.com:a/b.git"},
		{in: `"owner/repo".`, want: "https://github.com/owner/repo"},
		{in: "repo", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRepoName(t *testing.T) {
	tests := map[string]string{
		"https://github.com/owner/repo":     "repo",
		"https://github.com/owner/repo.git": "repo",
		"https://github.com/owner/repo/":    "repo",
		"git@github.com:owner/repo.git":     "repo",
	}
	for in, want := range tests {
		if got := RepoName(in); got != want {
			t.Errorf("RepoName(%q) = %q, want %q", in, got, want)
		}
	}
}
