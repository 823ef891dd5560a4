package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/ashureev/taskforge/internal/config"
)

// OpenAIClient implements Client over the OpenAI chat completions API,
// either hosted on Azure or on the public endpoint.
type OpenAIClient struct {
	client   openai.Client
	provider string
}

// NewOpenAIClient builds a client from oracle configuration.
func NewOpenAIClient(cfg config.OracleConfig, httpClient *http.Client) (*OpenAIClient, error) {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	switch cfg.Provider {
	case config.ProviderAzure:
		if cfg.AzureEndpoint == "" || cfg.AzureAPIKey == "" {
			return nil, fmt.Errorf("azure oracle requires endpoint and api key")
		}
		opts = append(opts,
			azure.WithEndpoint(strings.TrimRight(cfg.AzureEndpoint, "/"), cfg.AzureAPIVersion),
			azure.WithAPIKey(cfg.AzureAPIKey),
		)
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai oracle requires an api key")
		}
		opts = append(opts, option.WithAPIKey(cfg.OpenAIAPIKey))
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}

	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		provider: cfg.Provider,
	}, nil
}

// Complete sends the request and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		slog.Warn("Oracle request failed",
			"provider", c.provider,
			"deployment", req.Deployment,
			"error", err)
		return "", fmt.Errorf("complete with %s: %w: %w", req.Deployment, ErrUnavailable, err)
	}

	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	slog.Debug("Oracle response received",
		"deployment", req.Deployment,
		"content_length", len(content),
		"duration", time.Since(start))
	return content, nil
}

func buildParams(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		default:
			continue
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Deployment),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}
