package ai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"golang.org/x/time/rate"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Factory builds completers from model settings. Completers built by one
// factory share its rate limiter.
type Factory struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	getenv     func(string) string
}

func NewFactory() *Factory {
	return &Factory{
		httpClient: &http.Client{Timeout: domain.DefaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(CallsPerSecond), CallBurst),
		getenv:     os.Getenv,
	}
}

// ForModel returns the completer for model. It fails with
// domain.ErrModelUnavailable when no model is configured or the API key is
// missing.
func (f *Factory) ForModel(ctx context.Context, model domain.ModelSettings) (ports.Completer, error) {
	if !model.Enabled() {
		return nil, fmt.Errorf("%w: no model configured", domain.ErrModelUnavailable)
	}

	var completer ports.Completer
	switch model.Provider {
	case domain.ProviderAnthropic:
		apiKey, err := f.apiKey(model)
		if err != nil {
			return nil, err
		}
		cfg := &claude.Config{
			APIKey:    apiKey,
			Model:     model.Name,
			MaxTokens: model.GetMaxTokens(),
		}
		if model.Endpoint != "" {
			endpoint := model.Endpoint
			cfg.BaseURL = &endpoint
		}
		chatModel, err := claude.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: create Claude model: %w", domain.ErrModelUnavailable, err)
		}
		completer = &einoCompleter{name: "anthropic:" + model.Name, model: chatModel}
	case domain.ProviderOpenAI:
		apiKey, err := f.apiKey(model)
		if err != nil {
			return nil, err
		}
		maxTokens := model.GetMaxTokens()
		cfg := &openai.ChatModelConfig{
			APIKey:              apiKey,
			Model:               model.Name,
			MaxCompletionTokens: &maxTokens,
			BaseURL:             model.Endpoint,
		}
		chatModel, err := openai.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: create OpenAI model: %w", domain.ErrModelUnavailable, err)
		}
		completer = &einoCompleter{name: "openai:" + model.Name, model: chatModel}
	case domain.ProviderHTTP:
		if model.Endpoint == "" {
			return nil, fmt.Errorf("%w: http provider needs an endpoint", domain.ErrModelUnavailable)
		}
		completer = newHTTPCompleter(model, f.httpClient, f.getenv)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", domain.ErrModelUnavailable, model.Provider)
	}
	return newResilientCompleter(completer, f.limiter), nil
}

func (f *Factory) apiKey(model domain.ModelSettings) (string, error) {
	envVar := model.GetAuthEnvVar()
	if key := f.getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: missing API key, set %s", domain.ErrModelUnavailable, envVar)
}
