// Package repo clones template repositories with the git CLI and inspects
// their contents.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Common errors returned by clone operations.
var (
	ErrGitNotInstalled = errors.New("git is not installed or not in PATH")
	ErrTargetExists    = errors.New("target directory already exists")
	ErrInvalidURL      = errors.New("invalid repository URL")
)

// Commander executes external commands.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// Run executes a command and returns its trimmed stdout.
func (ShellCommander) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Result describes a clone attempt.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RepoDir string `json:"repo_dir"`
	Err     error  `json:"-"`
}

// Cloner clones repositories into a base directory.
type Cloner struct {
	fs        afero.Fs
	commander Commander
	baseDir   string
}

// NewCloner creates a Cloner backed by the git CLI.
func NewCloner(fs afero.Fs, baseDir string) *Cloner {
	return NewClonerWithCommander(fs, baseDir, ShellCommander{})
}

// NewClonerWithCommander creates a Cloner with a custom commander.
func NewClonerWithCommander(fs afero.Fs, baseDir string, commander Commander) *Cloner {
	return &Cloner{fs: fs, commander: commander, baseDir: baseDir}
}

// Clone clones url into dir, or into <base>/<repo name> when dir is empty,
// then checks out branch if given. An existing target is refused before any
// command runs. A failed checkout leaves the clone in place and is reported
// in the message only.
func (c *Cloner) Clone(ctx context.Context, url, dir, branch string) Result {
	normalized, err := NormalizeURL(url)
	if err != nil {
		return c.fail(dir, err)
	}
	if dir == "" {
		dir = filepath.Join(c.baseDir, RepoName(normalized))
	}

	exists, err := afero.Exists(c.fs, dir)
	if err != nil {
		return c.fail(dir, fmt.Errorf("check target %s: %w", dir, err))
	}
	if exists {
		return c.fail(dir, fmt.Errorf("%w: %s", ErrTargetExists, dir))
	}

	if _, err := c.commander.Run(ctx, "git", "--version"); err != nil {
		return c.fail(dir, ErrGitNotInstalled)
	}

	if parent := filepath.Dir(dir); parent != "" {
		if err := c.fs.MkdirAll(parent, 0o755); err != nil {
			return c.fail(dir, fmt.Errorf("create parent %s: %w", parent, err))
		}
	}

	if _, err := c.commander.Run(ctx, "git", "clone", normalized, dir); err != nil {
		return c.fail(dir, fmt.Errorf("failed to clone repository: %w", err))
	}
	slog.Info("Repository cloned", "url", normalized, "dir", dir)

	msg := fmt.Sprintf("Repository '%s' cloned successfully to %s", normalized, dir)
	if branch != "" {
		if _, err := c.commander.Run(ctx, "git", "-C", dir, "checkout", branch); err != nil {
			slog.Warn("Branch checkout failed", "dir", dir, "branch", branch, "error", err)
			msg += fmt.Sprintf(" (checkout of branch %s failed)", branch)
		} else {
			slog.Info("Checked out branch", "dir", dir, "branch", branch)
		}
	}

	return Result{Success: true, Message: msg, RepoDir: dir}
}

func (c *Cloner) fail(dir string, err error) Result {
	slog.Error("Clone failed", "dir", dir, "error", err)
	return Result{Success: false, Message: err.Error(), RepoDir: dir, Err: err}
}

// NormalizeURL expands owner/repo shorthand to a GitHub https URL.
func NormalizeURL(url string) (string, error) {
	url = strings.Trim(strings.TrimSpace(url), `.,;:"'`)
	switch {
	case url == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "git@"):
		return url, nil
	case strings.Contains(url, "/"):
		return "https://github.com/" + strings.TrimPrefix(url, "/"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}
}

// RepoName returns the last path segment of url without a .git suffix.
func RepoName(url string) string {
	name := path.Base(strings.TrimRight(url, "/"))
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
