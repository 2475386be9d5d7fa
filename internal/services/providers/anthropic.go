package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/utils/clientcache"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// AnthropicClient serves Claude models through the Messages API
type AnthropicClient struct {
	cache *clientcache.Cache[*anthropic.Client]
}

// NewAnthropicClient creates an Anthropic client
func NewAnthropicClient() *AnthropicClient {
	return &AnthropicClient{cache: clientcache.NewCache[*anthropic.Client]()}
}

func (c *AnthropicClient) client(cfg models.ProviderConfig) (*anthropic.Client, error) {
	return c.cache.GetOrCreate(configKey(cfg), func() (*anthropic.Client, error) {
		fiberlog.Debugf("Creating new Anthropic client for %s", cfg.Name)

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

		client := anthropic.NewClient(opts...)
		return &client, nil
	})
}

// Generate implements Client
func (c *AnthropicClient) Generate(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error) {
	client, err := c.client(cfg)
	if err != nil {
		return models.Completion{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: int64(max(cfg.MaxTokens, 1)),
		Messages:  anthropicMessages(req),
	}
	if system := req.System(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(min(cfg.Temperature, 1))
	}

	start := time.Now()
	message, err := client.Messages.New(ctx, params)
	if err != nil {
		fiberlog.Errorf("[%s] %s request failed after %v: %v", req.RequestID, cfg.Name, time.Since(start), err)
		if ctx.Err() != nil {
			return models.Completion{}, ctx.Err()
		}
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return models.Completion{}, vendorError(cfg.Name, status, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return models.Completion{}, emptyContentError(cfg.Name)
	}

	tokens := int(message.Usage.InputTokens + message.Usage.OutputTokens)
	fiberlog.Debugf("[%s] %s request completed in %v - tokens: %d", req.RequestID, cfg.Name, time.Since(start), tokens)
	return models.Completion{
		Content:    text.String(),
		Model:      string(message.Model),
		TokensUsed: tokens,
	}, nil
}

func anthropicMessages(req models.AIRequest) []anthropic.MessageParam {
	conv := req.Conversation()
	msgs := make([]anthropic.MessageParam, 0, len(conv))
	for _, m := range conv {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(block))
	}
	return msgs
}
