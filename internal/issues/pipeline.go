package issues

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/taskforge/internal/domain"
)

// Pipeline chains topic extraction, issue search and relevance filtering.
type Pipeline struct {
	extractor   *Extractor
	searcher    Searcher
	concurrency int
}

// NewPipeline creates a Pipeline.
func NewPipeline(extractor *Extractor, searcher Searcher, concurrency int) *Pipeline {
	if searcher == nil {
		searcher = NoopSearcher{}
	}
	return &Pipeline{extractor: extractor, searcher: searcher, concurrency: concurrency}
}

// Run returns the filtered issues for a task description.
func (p *Pipeline) Run(ctx context.Context, desc domain.TasksDescription) ([]string, error) {
	topics, err := p.extractor.ExtractTopics(ctx, desc)
	if err != nil {
		return nil, err
	}
	slog.Info("Topics extracted", "count", len(topics), "topics", topics)
	if len(topics) == 0 {
		return []string{}, nil
	}

	found, err := SearchAll(ctx, p.searcher, topics, p.concurrency)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}

	filtered, err := p.extractor.Filter(ctx, found, topics)
	if err != nil {
		return nil, err
	}
	slog.Info("Issues filtered", "topics", len(topics), "selected", len(filtered))
	return filtered, nil
}
