package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAIClient serves OpenAI and OpenAI-compatible providers such as Grok
type OpenAIClient struct {
	cache *clientcache.Cache[*openai.Client]
}

// NewOpenAIClient creates an OpenAI-protocol client
func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{cache: clientcache.NewCache[*openai.Client]()}
}

func (c *OpenAIClient) client(cfg models.ProviderConfig) (*openai.Client, error) {
	return c.cache.GetOrCreate(configKey(cfg), func() (*openai.Client, error) {
		fiberlog.Debugf("Creating new OpenAI-protocol client for %s", cfg.Name)

		opts := []option.RequestOption{
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		for key, value := range cfg.Headers {
			opts = append(opts, option.WithHeader(key, value))
		}

		client := openai.NewClient(opts...)
		return &client, nil
	})
}

// Generate implements Client
func (c *OpenAIClient) Generate(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error) {
	client, err := c.client(cfg)
	if err != nil {
		return models.Completion{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(cfg.Model),
		Messages: openAIMessages(req),
	}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		params.Temperature = openai.Float(cfg.Temperature)
	}

	start := time.Now()
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		fiberlog.Errorf("[%s] %s request failed after %v: %v", req.RequestID, cfg.Name, time.Since(start), err)
		if ctx.Err() != nil {
			return models.Completion{}, ctx.Err()
		}
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return models.Completion{}, vendorError(cfg.Name, status, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return models.Completion{}, emptyContentError(cfg.Name)
	}

	fiberlog.Debugf("[%s] %s request completed in %v - tokens: %d", req.RequestID, cfg.Name, time.Since(start), resp.Usage.TotalTokens)
	return models.Completion{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

func openAIMessages(req models.AIRequest) []openai.ChatCompletionMessageParamUnion {
	conv := req.Conversation()
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv)+1)
	if system := req.System(); system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, m := range conv {
		if m.Role == models.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}
	return msgs
}
