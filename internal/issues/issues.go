// Package issues turns a task description into a short list of relevant
// tracker issues: topic extraction, per-topic search, then relevance filtering.
package issues

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/taskforge/internal/domain"
	"github.com/ashureev/taskforge/internal/jsonrepair"
	"github.com/ashureev/taskforge/internal/oracle"
)

// MaxFiltered caps the number of issues returned by Filter.
const MaxFiltered = 10

const (
	topicsSystemPrompt = "You are a helpful assistant that extracts topics from a description."
	filterSystemPrompt = "You are a helpful assistant that filters issues based on a topic."
	completionTokens   = 800
)

// Extractor asks the oracle for topics and for the most relevant issues.
type Extractor struct {
	oracle     oracle.Client
	deployment string
}

// NewExtractor creates an Extractor bound to a deployment.
func NewExtractor(client oracle.Client, deployment string) *Extractor {
	return &Extractor{oracle: client, deployment: deployment}
}

// ExtractTopics returns single-word search topics for the description.
// Blank topics are dropped and duplicates removed, keeping the first occurrence.
func (e *Extractor) ExtractTopics(ctx context.Context, desc domain.TasksDescription) ([]string, error) {
	reply, err := e.complete(ctx, topicsSystemPrompt, topicsPrompt(desc))
	if err != nil {
		return nil, fmt.Errorf("extract topics: %w", err)
	}

	var parsed struct {
		Topics []string `json:"topics"`
	}
	if err := jsonrepair.Decode(reply, &parsed); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	return dedupe(parsed.Topics), nil
}

// Filter asks the oracle for up to MaxFiltered issues relevant to topics.
func (e *Extractor) Filter(ctx context.Context, found map[string]map[string]string, topics []string) ([]string, error) {
	reply, err := e.complete(ctx, filterSystemPrompt, filterPrompt(found, topics))
	if err != nil {
		return nil, fmt.Errorf("filter issues: %w", err)
	}

	var parsed struct {
		Issues []string `json:"issues"`
	}
	if err := jsonrepair.Decode(reply, &parsed); err != nil {
		return nil, fmt.Errorf("parse filtered issues: %w", err)
	}

	filtered := dedupe(parsed.Issues)
	if len(filtered) > MaxFiltered {
		filtered = filtered[:MaxFiltered]
	}
	return filtered, nil
}

func (e *Extractor) complete(ctx context.Context, system, prompt string) (string, error) {
	return e.oracle.Complete(ctx, oracle.Request{
		Deployment:  e.deployment,
		Messages:    []oracle.Message{oracle.System(system), oracle.User(prompt)},
		MaxTokens:   completionTokens,
		Temperature: oracle.Temperature(1.0),
	})
}

func topicsPrompt(desc domain.TasksDescription) string {
	body, _ := json.Marshal(desc)
	return fmt.Sprintf(`Your task is to extract the main topics from the tasks description and return them as a list of strings.
These topics will be used for issue search in Jira, so make sure they are clear and specific.
Each topic should be a single keyword; give as many keywords as you can.
The description is: %s

Return your response in JSON format, like this:
{"topics": ["topic1", "topic2", "topic3"]}`, body)
}

func filterPrompt(found map[string]map[string]string, topics []string) string {
	topicsJSON, _ := json.Marshal(topics)
	issuesJSON, _ := json.Marshal(found)
	return fmt.Sprintf(`Your task is to filter the issues list based on the topics list.

The topics list is:
%s

The issues list is:
%s

Return up to %d issues that are most relevant to the topics.

Return your response in JSON format, like this:
{"issues": ["issue1", "issue2", "issue3"]}`, topicsJSON, issuesJSON, MaxFiltered)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
