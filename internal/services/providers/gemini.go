package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

// GeminiClient serves Gemini models through the Gemini API
type GeminiClient struct {
	cache *clientcache.Cache[*genai.Client]
}

// NewGeminiClient creates a Gemini client
func NewGeminiClient() *GeminiClient {
	return &GeminiClient{cache: clientcache.NewCache[*genai.Client]()}
}

func (c *GeminiClient) client(ctx context.Context, cfg models.ProviderConfig) (*genai.Client, error) {
	return c.cache.GetOrCreate(configKey(cfg), func() (*genai.Client, error) {
		fiberlog.Debugf("Creating new Gemini client for %s", cfg.Name)

		cc := &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.BaseURL != "" {
			cc.HTTPOptions.BaseURL = cfg.BaseURL
		}
		if len(cfg.Headers) > 0 {
			cc.HTTPOptions.Headers = http.Header{}
			for key, value := range cfg.Headers {
				cc.HTTPOptions.Headers.Set(key, value)
			}
		}

		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, models.NewConfigurationError("failed to create Gemini client", err)
		}
		return client, nil
	})
}

// Generate implements Client
func (c *GeminiClient) Generate(ctx context.Context, cfg models.ProviderConfig, req models.AIRequest) (models.Completion, error) {
	client, err := c.client(ctx, cfg)
	if err != nil {
		return models.Completion{}, err
	}

	genCfg := &genai.GenerateContentConfig{}
	if system := req.System(); system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, cfg.Model, geminiContents(req), genCfg)
	if err != nil {
		fiberlog.Errorf("[%s] %s request failed after %v: %v", req.RequestID, cfg.Name, time.Since(start), err)
		if ctx.Err() != nil {
			return models.Completion{}, ctx.Err()
		}
		return models.Completion{}, vendorError(cfg.Name, 0, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return models.Completion{}, emptyContentError(cfg.Name)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	model := resp.ModelVersion
	if model == "" {
		model = cfg.Model
	}

	fiberlog.Debugf("[%s] %s request completed in %v - tokens: %d", req.RequestID, cfg.Name, time.Since(start), tokens)
	return models.Completion{Content: text, Model: model, TokensUsed: tokens}, nil
}

func geminiContents(req models.AIRequest) []*genai.Content {
	conv := req.Conversation()
	contents := make([]*genai.Content, 0, len(conv))
	for _, m := range conv {
		role := genai.Role(genai.RoleUser)
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

