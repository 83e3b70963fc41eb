package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/capitalize-ai/colloquy/pkg/metrics"
)

var tracer = otel.Tracer("github.com/capitalize-ai/colloquy/internal/llm")

// Credentials are the per-request provider keys supplied by the client.
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
}

// Options tune how providers are reached.
type Options struct {
	OpenAIBaseURL    string
	AnthropicBaseURL string
	HTTPClient       *http.Client
}

// Gateway dispatches completion requests to the provider serving each model kind.
type Gateway struct {
	providers map[ProviderKind]Provider
}

// NewGateway builds a gateway for one request. The OpenAI credential is
// required; the Anthropic provider is only registered when its key is present.
func NewGateway(creds Credentials, opts Options) (*Gateway, error) {
	oa, err := NewOpenAIClient(creds.OpenAIKey, opts.OpenAIBaseURL, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	providers := map[ProviderKind]Provider{
		KindChat:      oa,
		KindReasoning: oa,
	}

	if creds.AnthropicKey != "" {
		an, err := NewAnthropicClient(creds.AnthropicKey, opts.AnthropicBaseURL, opts.HTTPClient)
		if err != nil {
			return nil, err
		}
		providers[KindAnthropic] = an
	}

	return NewGatewayWithProviders(providers), nil
}

// NewGatewayWithProviders builds a gateway from explicit providers.
func NewGatewayWithProviders(providers map[ProviderKind]Provider) *Gateway {
	return &Gateway{providers: providers}
}

// Supports reports whether a provider is configured for the model.
func (g *Gateway) Supports(model string) bool {
	_, ok := g.providers[KindOf(model)]
	return ok
}

// Complete routes the request by model kind. Provider failures are returned
// as *ProviderError; truncation is reported through Response.FinishReason.
func (g *Gateway) Complete(ctx context.Context, req *Request) (*Response, error) {
	kind := KindOf(req.Model)

	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.String("llm.kind", kind.String()),
	)

	p, ok := g.providers[kind]
	if !ok {
		span.SetStatus(codes.Error, "provider unavailable")
		return nil, &ProviderError{Provider: kind.String(), Model: req.Model, Cause: ErrProviderUnavailable}
	}

	start := time.Now()
	resp, err := p.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordLLMCall(p.Name(), req.Model, "error", elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &ProviderError{
			Provider:   p.Name(),
			Model:      req.Model,
			StatusCode: statusOf(err),
			Cause:      err,
		}
	}

	status := "success"
	if resp.Truncated() {
		status = "truncated"
	}
	metrics.RecordLLMCall(p.Name(), req.Model, status, elapsed, resp.TokensIn, resp.TokensOut)
	span.SetAttributes(attribute.String("llm.finish_reason", resp.FinishReason))

	return resp, nil
}

func statusOf(err error) int {
	if code := openAIStatus(err); code != 0 {
		return code
	}
	return anthropicStatus(err)
}

// IsUnavailable reports whether err means no provider was configured for the model.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
