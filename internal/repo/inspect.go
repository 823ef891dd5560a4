package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// StructureDepth is how deep Structure descends by default.
const StructureDepth = 3

const (
	maxSamplesPerType = 5
	maxSamples        = 10
	maxSampleChars    = 2000
)

// ErrOutsideRepo is returned when a requested file resolves outside the repository.
var ErrOutsideRepo = errors.New("path is outside the repository")

var readmeCandidates = []string{"README.md", "README", "README.txt", "Readme.md"}

type fileBucket struct {
	name     string
	patterns []string
}

var keyFileBuckets = []fileBucket{
	{"configuration", []string{"*.json", "*.yaml", "*.yml", "*.ini", "*.conf", "*.toml", "*.xml", ".env*"}},
	{"documentation", []string{"*.md", "*.txt", "*.rst", "*.doc", "*.pdf"}},
	{"source_code", []string{"*.py", "*.js", "*.ts", "*.java", "*.c", "*.cpp", "*.go", "*.rs", "*.rb", "*.php", "*.cs"}},
	{"build", []string{"Makefile", "setup.py", "package.json", "build.gradle", "pom.xml", "Cargo.toml", "CMakeLists.txt"}},
	{"tests", []string{"test_*.py", "*_test.py", "*_test.go", "*_spec.js", "*_spec.ts", "*Test.java"}},
}

var codeQueryTerms = []string{"code", "example", "function", "class", "implementation"}

var languagePatterns = []struct {
	words    []string
	patterns []string
}{
	{[]string{"python", "py"}, []string{"*.py"}},
	{[]string{"javascript", "js"}, []string{"*.js"}},
	{[]string{"typescript", "ts"}, []string{"*.ts"}},
	{[]string{"java"}, []string{"*.java"}},
	{[]string{"go", "golang"}, []string{"*.go"}},
	{[]string{"rust"}, []string{"*.rs"}},
	{[]string{"c++", "cpp"}, []string{"*.cpp", "*.hpp", "*.cc", "*.h"}},
}

var defaultCodePatterns = []string{"*.py", "*.js", "*.ts", "*.java", "*.go", "*.rs", "*.cpp"}

var locLanguages = map[string]string{
	".py": "Python", ".js": "JavaScript", ".ts": "TypeScript", ".java": "Java",
	".go": "Go", ".rs": "Rust", ".cpp": "C++", ".c": "C", ".h": "C/C++ Header",
	".hpp": "C++ Header", ".cs": "C#", ".rb": "Ruby", ".php": "PHP", ".html": "HTML",
	".css": "CSS", ".md": "Markdown", ".json": "JSON", ".yml": "YAML", ".yaml": "YAML",
	".xml": "XML",
}

var fileNamePattern = regexp.MustCompile(`[\w\-.]+\.\w+`)

// Inspection summarizes a repository.
type Inspection struct {
	RepoPath      string              `json:"repo_path"`
	Structure     map[string]any      `json:"structure"`
	Readme        *string             `json:"readme"`
	KeyFiles      map[string][]string `json:"key_files"`
	QueryResponse *QueryResponse      `json:"query_response,omitempty"`
}

// QueryResponse answers a free-text question about a repository.
type QueryResponse struct {
	CodeSamples   []FileSample   `json:"code_samples,omitempty"`
	SpecificFiles []FileSample   `json:"specific_files,omitempty"`
	LinesOfCode   map[string]int `json:"lines_of_code,omitempty"`
}

// FileSample is a possibly truncated file body.
type FileSample struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Inspector reads repositories from a filesystem.
type Inspector struct {
	fs afero.Fs
}

// NewInspector creates an Inspector over fs.
func NewInspector(fs afero.Fs) *Inspector {
	return &Inspector{fs: fs}
}

// Inspect returns structure, README and key files of the repository at root,
// plus a query response when query is not empty.
func (i *Inspector) Inspect(root, query string) (*Inspection, error) {
	if ok, err := afero.DirExists(i.fs, root); err != nil || !ok {
		return nil, fmt.Errorf("repository path does not exist: %s", root)
	}

	structure, err := i.Structure(root, StructureDepth)
	if err != nil {
		return nil, err
	}
	keyFiles, err := i.KeyFiles(root)
	if err != nil {
		return nil, err
	}

	out := &Inspection{
		RepoPath:  root,
		Structure: structure,
		KeyFiles:  keyFiles,
	}
	if readme, ok := i.Readme(root); ok {
		out.Readme = &readme
	}
	if strings.TrimSpace(query) != "" {
		if out.QueryResponse, err = i.Query(root, query); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Structure returns a nested map of the tree under root, skipping hidden
// entries. Directories map to nested maps, files to nil.
func (i *Inspector) Structure(root string, maxDepth int) (map[string]any, error) {
	out := map[string]any{}
	if err := i.traverse(root, 1, maxDepth, out); err != nil {
		return nil, fmt.Errorf("read structure of %s: %w", root, err)
	}
	return out, nil
}

func (i *Inspector) traverse(dir string, depth, maxDepth int, into map[string]any) error {
	if depth > maxDepth {
		return nil
	}
	entries, err := afero.ReadDir(i.fs, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			child := map[string]any{}
			into[e.Name()] = child
			if err := i.traverse(filepath.Join(dir, e.Name()), depth+1, maxDepth, child); err != nil {
				return err
			}
			continue
		}
		into[e.Name()] = nil
	}
	return nil
}

// Readme returns the first README candidate found at root.
func (i *Inspector) Readme(root string) (string, bool) {
	for _, name := range readmeCandidates {
		data, err := afero.ReadFile(i.fs, filepath.Join(root, name))
		if err == nil {
			return string(data), true
		}
	}
	return "", false
}

// KeyFiles buckets files by role: configuration, documentation,
// source_code, build and tests. A file may appear in several buckets.
func (i *Inspector) KeyFiles(root string) (map[string][]string, error) {
	files, err := i.walkFiles(root, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(keyFileBuckets))
	for _, b := range keyFileBuckets {
		matched := []string{}
		for _, pattern := range b.patterns {
			matched = append(matched, matchAll(files, pattern)...)
		}
		out[b.name] = matched
	}
	return out, nil
}

// FindFiles returns paths relative to root whose base name matches pattern.
func (i *Inspector) FindFiles(root, pattern string) ([]string, error) {
	files, err := i.walkFiles(root, false)
	if err != nil {
		return nil, err
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return matchAll(files, pattern), nil
}

// ReadFile returns the content of rel, which must stay inside root.
func (i *Inspector) ReadFile(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("no file path specified")
	}
	full := filepath.Join(root, rel)
	if filepath.IsAbs(rel) {
		full = filepath.Clean(rel)
	}
	inside, err := filepath.Rel(root, full)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, rel)
	}
	data, err := afero.ReadFile(i.fs, full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	return string(data), nil
}

// Query answers a free-text question: code samples when the query asks for
// code, named files when it mentions file names, and line counts per
// language when it asks for lines, loc or counts.
func (i *Inspector) Query(root, query string) (*QueryResponse, error) {
	lower := strings.ToLower(query)
	resp := &QueryResponse{}

	var files []string
	loadFiles := func() error {
		if files != nil {
			return nil
		}
		var err error
		files, err = i.walkFiles(root, false)
		return err
	}

	if containsAny(lower, codeQueryTerms) {
		if err := loadFiles(); err != nil {
			return nil, err
		}
		resp.CodeSamples = i.codeSamples(root, files, codePatterns(lower))
	}

	if names := fileNamePattern.FindAllString(query, -1); len(names) > 0 {
		for _, name := range names {
			matched, err := i.FindFiles(root, name)
			if err != nil {
				slog.Debug("Skipping file name in query", "name", name, "error", err)
				continue
			}
			for _, rel := range matched {
				if s, ok := i.sample(root, rel); ok {
					resp.SpecificFiles = append(resp.SpecificFiles, s)
				}
			}
		}
	}

	if containsAny(lower, []string{"lines", "loc", "count"}) {
		loc, err := i.linesOfCode(root)
		if err != nil {
			return nil, err
		}
		resp.LinesOfCode = loc
	}
	return resp, nil
}

func (i *Inspector) codeSamples(root string, files, patterns []string) []FileSample {
	var samples []FileSample
	for _, pattern := range patterns {
		matched := matchAll(files, pattern)
		if len(matched) > maxSamplesPerType {
			matched = matched[:maxSamplesPerType]
		}
		for _, rel := range matched {
			if s, ok := i.sample(root, rel); ok {
				samples = append(samples, s)
			}
		}
	}
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}

func (i *Inspector) sample(root, rel string) (FileSample, bool) {
	content, err := i.ReadFile(root, rel)
	if err != nil {
		return FileSample{}, false
	}
	return FileSample{Path: rel, Content: truncate(content, maxSampleChars)}, true
}

// truncate cuts s to at most limit bytes on a rune boundary and marks the cut.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (i *Inspector) linesOfCode(root string) (map[string]int, error) {
	files, err := i.walkFiles(root, true)
	if err != nil {
		return nil, err
	}
	loc := map[string]int{}
	for _, rel := range files {
		lang, ok := locLanguages[filepath.Ext(rel)]
		if !ok {
			continue
		}
		data, err := afero.ReadFile(i.fs, filepath.Join(root, rel))
		if err != nil {
			continue
		}
		loc[lang] += countLines(data)
	}
	return loc, nil
}

// walkFiles lists regular files under root relative to it, in lexical order.
// Hidden directories are skipped unless includeHidden is set.
func (i *Inspector) walkFiles(root string, includeHidden bool) ([]string, error) {
	files := []string{}
	err := afero.Walk(i.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != root && !includeHidden && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// matchAll returns files whose base name matches pattern. Hidden files only
// match patterns that themselves start with a dot.
func matchAll(files []string, pattern string) []string {
	var out []string
	for _, rel := range files {
		base := filepath.Base(rel)
		if strings.HasPrefix(base, ".") && !strings.HasPrefix(pattern, ".") {
			continue
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			out = append(out, rel)
		}
	}
	return out
}

func codePatterns(lowerQuery string) []string {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lowerQuery, func(r rune) bool {
		return !(r == '+' || r == '#' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		words[w] = true
	}

	var patterns []string
	seen := map[string]bool{}
	for _, lang := range languagePatterns {
		for _, w := range lang.words {
			if !words[w] {
				continue
			}
			for _, p := range lang.patterns {
				if !seen[p] {
					seen[p] = true
					patterns = append(patterns, p)
				}
			}
			break
		}
	}
	if len(patterns) == 0 {
		return defaultCodePatterns
	}
	return patterns
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
