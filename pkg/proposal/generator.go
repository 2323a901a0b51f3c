// Package proposal turns a deal snapshot into proposal document content via
// the Anthropic API, with deterministic prompt shaping and output validation.
package proposal

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"proposalbot/pkg/apierrors"
	"proposalbot/pkg/catalog"
	"proposalbot/pkg/hubspot"
	"proposalbot/pkg/logx"
)

const maxGenerationTokens = 4096

// Content is the generated proposal document, keyed by section.
type Content struct {
	ExecutiveSummaryHTML string
	PreviewHTML          string
}

// Generator produces proposal content. Safe for concurrent use.
type Generator struct {
	client  anthropic.Client
	model   anthropic.Model
	logger  *logx.Logger
	onRetry apierrors.Observer
}

// Option configures a Generator.
type Option func(*Generator)

// WithBaseURL points the client at a different endpoint (tests use mocks).
func WithBaseURL(baseURL string) Option {
	return func(g *Generator) {
		g.client = anthropic.NewClient(option.WithBaseURL(baseURL), option.WithMaxRetries(0))
	}
}

// WithRetryObserver wires retry events into metrics.
func WithRetryObserver(observe apierrors.Observer) Option {
	return func(g *Generator) { g.onRetry = observe }
}

// NewGenerator creates a Generator using the given API key and model.
func NewGenerator(apiKey, model string, opts ...Option) *Generator {
	g := &Generator{
		// SDK-internal retries are disabled: the classified retry policy in
		// apierrors is the single retry layer.
		client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		model:  anthropic.Model(model),
		logger: logx.NewLogger("proposal"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the full proposal content for one invocation: the
// executive summary first, then the 90-day preview. Each section is validated
// and retried once with a stricter instruction before the invocation fails
// with a generation error.
func (g *Generator) Generate(ctx context.Context, snapshot *hubspot.DealSnapshot, rec catalog.Recommendation) (*Content, error) {
	summary, err := g.generateValidated(ctx, summarySystemPrompt, BuildSummaryPrompt(snapshot, rec))
	if err != nil {
		return nil, logx.Wrap(err, "executive summary")
	}

	preview, err := g.generateValidated(ctx, previewSystemPrompt, BuildPreviewPrompt(snapshot))
	if err != nil {
		return nil, logx.Wrap(err, "90-day preview")
	}

	return &Content{ExecutiveSummaryHTML: summary, PreviewHTML: preview}, nil
}

// generateValidated performs one generation call and validates the output,
// allowing a single stricter retry on validation failure. Transport-level
// transient errors are retried inside complete.
func (g *Generator) generateValidated(ctx context.Context, system, user string) (string, error) {
	text, err := g.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if validateErr := validateHTML(text); validateErr != nil {
		g.logger.Warn("generated content failed validation, retrying with stricter instruction: %v", validateErr)
		text, err = g.complete(ctx, system+stricterInstruction, user)
		if err != nil {
			return "", err
		}
		if validateErr := validateHTML(text); validateErr != nil {
			return "", apierrors.NewErrorWithCause(apierrors.ErrorTypeGeneration, validateErr,
				"content failed validation after stricter retry")
		}
	}
	return text, nil
}

// complete makes one Messages call, retrying transient and rate-limit errors.
func (g *Generator) complete(ctx context.Context, system, user string) (string, error) {
	var text string
	err := apierrors.DoWithObserver(ctx, func(ctx context.Context) error {
		params := anthropic.MessageNewParams{
			Model:     g.model,
			MaxTokens: maxGenerationTokens,
			System: []anthropic.TextBlockParam{{
				Text: system,
				Type: "text",
			}},
			Messages: []anthropic.MessageParam{{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(user)},
			}},
		}

		resp, err := g.client.Messages.New(ctx, params)
		if err != nil {
			return classifyError(err)
		}
		if resp == nil || len(resp.Content) == 0 {
			return apierrors.NewError(apierrors.ErrorTypeTransient, "empty response from generative service")
		}

		text = ""
		for i := range resp.Content {
			block := &resp.Content[i]
			if block.Type == "text" {
				textBlock := block.AsText()
				text += textBlock.Text
			}
		}
		text = strings.TrimSpace(text)
		return nil
	}, g.onRetry)
	return text, err
}

// validateHTML checks the minimal output schema: non-empty, sectioned with
// <h3> headers, no markdown code fences.
func validateHTML(text string) error {
	switch {
	case strings.TrimSpace(text) == "":
		return errors.New("empty content")
	case strings.Contains(text, "```"):
		return errors.New("contains markdown code fences")
	case !strings.Contains(text, "<h3>"):
		return errors.New("missing required <h3> sections")
	default:
		return nil
	}
}

// classifyError maps Anthropic SDK errors to classified error types.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, err, "generation timeout")
	}
	if errors.Is(err, context.Canceled) {
		return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, err, "generation canceled")
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return apierrors.NewErrorWithStatus(apierrors.ErrorTypeAuth, apiErr.StatusCode,
				"generative service rejected credentials")
		case 429:
			return apierrors.NewErrorWithStatus(apierrors.ErrorTypeRateLimit, apiErr.StatusCode,
				"generative service rate limit")
		case 400:
			return apierrors.NewErrorWithCause(apierrors.ErrorTypeContentPolicy, err,
				"generative service rejected the request")
		case 500, 502, 503, 504, 529:
			return apierrors.NewErrorWithStatus(apierrors.ErrorTypeTransient, apiErr.StatusCode,
				"generative service unavailable")
		}
	}

	return apierrors.NewErrorWithCause(apierrors.ErrorTypeTransient, err, "generation call failed")
}
