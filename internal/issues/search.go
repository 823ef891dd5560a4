package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/sync/errgroup"
)

// Searcher finds tracker issues for a topic, returning issue key to summary.
type Searcher interface {
	Search(ctx context.Context, topic string) (map[string]string, error)
}

// JiraSearcher searches Jira Cloud with a full-text JQL clause.
type JiraSearcher struct {
	client     *jira.Client
	maxResults int
}

// NewJiraSearcher creates a searcher authenticated with an account email and API token.
func NewJiraSearcher(baseURL, email, token string, maxResults int) (*JiraSearcher, error) {
	tp := jira.BasicAuthTransport{
		Username: email,
		Password: token,
	}
	return newJiraSearcher(tp.Client(), baseURL, maxResults)
}

func newJiraSearcher(httpClient *http.Client, baseURL string, maxResults int) (*JiraSearcher, error) {
	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	return &JiraSearcher{client: client, maxResults: maxResults}, nil
}

// Search runs `text ~ "<topic>" ORDER BY created DESC`. A blank topic yields
// an empty result without a query.
func (s *JiraSearcher) Search(ctx context.Context, topic string) (map[string]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return map[string]string{}, nil
	}

	found, _, err := s.client.Issue.SearchWithContext(ctx, JQL(topic), &jira.SearchOptions{
		MaxResults: s.maxResults,
		Fields:     []string{"summary"},
	})
	if err != nil {
		return nil, fmt.Errorf("search jira for %q: %w", topic, err)
	}

	out := make(map[string]string, len(found))
	for _, issue := range found {
		summary := ""
		if issue.Fields != nil {
			summary = issue.Fields.Summary
		}
		out[issue.Key] = summary
	}
	return out, nil
}

var jqlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// JQL builds the full-text query for a topic.
func JQL(topic string) string {
	return fmt.Sprintf(`text ~ "%s" ORDER BY created DESC`, jqlEscaper.Replace(topic))
}

// NoopSearcher returns no issues. It stands in when tracker credentials are absent.
type NoopSearcher struct{}

// Search implements Searcher.
func (NoopSearcher) Search(context.Context, string) (map[string]string, error) {
	return map[string]string{}, nil
}

// ErrAllSearchesFailed is returned by SearchAll when no topic could be searched.
var ErrAllSearchesFailed = errors.New("every topic search failed")

// SearchAll searches every topic with at most limit concurrent queries and
// merges the results into topic -> {key: summary}. A failing topic is logged
// and maps to an empty set; an error is returned only when every topic fails.
func SearchAll(ctx context.Context, s Searcher, topics []string, limit int) (map[string]map[string]string, error) {
	results := make(map[string]map[string]string, len(topics))
	if len(topics) == 0 {
		return results, nil
	}

	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, topic := range topics {
		g.Go(func() error {
			found, err := s.Search(gctx, topic)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("Issue search failed", "topic", topic, "error", err)
				failures = append(failures, err)
				found = map[string]string{}
			}
			results[topic] = found
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == len(topics) {
		return nil, fmt.Errorf("%w: %w", ErrAllSearchesFailed, errors.Join(failures...))
	}
	return results, nil
}
