// Package analyzer calls an external chat-completion service to score a profile.
//
// One Analyze call makes exactly one upstream request. There is no caching and
// no retrying; callers decide what to do with a classified *Error.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"badguys/internal/profile/models"
	"badguys/internal/profile/urlcheck"
	"badguys/pkg/requestcontext"
)

const (
	DefaultEndpoint = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultModel    = "google/gemini-3-flash-preview"
	DefaultTimeout  = 60 * time.Second

	maxResponseBytes = 10 * 1024 * 1024 // 10 MiB
)

// Analyzer produces a risk analysis for a validated profile reference.
type Analyzer interface {
	Analyze(ctx context.Context, u urlcheck.URL) (*models.Analysis, error)
}

// KeyFunc resolves the API key for one call. An empty key falls back to the
// key given to New.
type KeyFunc func(ctx context.Context) (string, error)

// Recorder receives one observation per upstream call.
type Recorder interface {
	ObserveAnalyzerCall(outcome string, start time.Time)
}

// Client is the chat-completions implementation of Analyzer.
type Client struct {
	endpoint   string
	apiKey     string // never serialized
	keyFunc    KeyFunc
	model      string
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithKeyFunc looks the API key up on every call, so a key rotated at runtime
// applies to the next analysis.
func WithKeyFunc(f KeyFunc) Option {
	return func(c *Client) {
		c.keyFunc = f
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// New constructs a Client. apiKey is sent as a bearer token unless a KeyFunc
// supplies another one.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		apiKey:     apiKey,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer("badguys/internal/profile/analyzer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// toolArguments uses pointers so a missing field is distinguishable from a zero value.
type toolArguments struct {
	Name      *string  `json:"name"`
	Title     *string  `json:"title"`
	RiskScore *float64 `json:"riskScore"`
	Analysis  *string  `json:"analysis"`
}

// Analyze scores u. Failures are *Error values; context cancellation is
// reported as KindUpstreamFailure wrapping ctx.Err().
func (c *Client) Analyze(ctx context.Context, u urlcheck.URL) (_ *models.Analysis, err error) {
	ctx, span := c.tracer.Start(ctx, "analyzer.Analyze",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("profile.kind", string(u.Kind())),
			attribute.String("analyzer.model", c.model),
		))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(kindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if c.recorder != nil {
			c.recorder.ObserveAnalyzerCall(outcome, start)
		}
	}()

	apiKey := c.resolveKey(ctx)
	if apiKey == "" {
		return nil, &Error{Kind: KindUpstreamFailure, Err: ErrNoAPIKey}
	}

	body, err := json.Marshal(c.buildRequest(u))
	if err != nil {
		return nil, &Error{Kind: KindUpstreamFailure, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUpstreamFailure, Err: fmt.Errorf("creating HTTP request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindUpstreamFailure, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindUpstreamFailure, Err: fmt.Errorf("reading response body: %w", err)}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, Status: resp.StatusCode, Body: string(respBytes)}
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, &Error{Kind: KindQuotaExhausted, Status: resp.StatusCode, Body: string(respBytes)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.ErrorContext(ctx, "analyzer upstream error",
			"request_id", requestcontext.RequestID(ctx),
			"status", resp.StatusCode,
			"body", truncate(string(respBytes), 500),
		)
		return nil, &Error{Kind: KindUpstreamFailure, Status: resp.StatusCode, Body: string(respBytes)}
	}

	analysis, err := decodeAnalysis(respBytes)
	if err != nil {
		c.logger.ErrorContext(ctx, "analyzer returned malformed response",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
			"payload", truncate(string(respBytes), 2000),
		)
		return nil, &Error{Kind: KindMalformedResponse, Err: err}
	}
	span.SetAttributes(attribute.Int("profile.risk_score", analysis.RiskScore))
	return analysis, nil
}

func (c *Client) resolveKey(ctx context.Context) string {
	if c.keyFunc == nil {
		return c.apiKey
	}
	key, err := c.keyFunc(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "analyzer key lookup failed, using configured key",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return c.apiKey
	}
	if key == "" {
		return c.apiKey
	}
	return key
}

func (c *Client) buildRequest(u urlcheck.URL) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildUserPrompt(u)},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: toolFunction{
				Name:        toolName,
				Description: "Return the profile analysis results",
				Parameters:  toolSchema,
			},
		}},
		ToolChoice: toolChoice{Type: "function", Function: toolFunction{Name: toolName}},
	}
}

func decodeAnalysis(payload []byte) (*models.Analysis, error) {
	var resp chatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("response has no tool call")
	}
	rawArgs := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if rawArgs == "" {
		return nil, fmt.Errorf("tool call has no arguments")
	}

	var args toolArguments
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("parsing tool arguments: %w", err)
	}
	switch {
	case args.Name == nil:
		return nil, fmt.Errorf("tool arguments missing name")
	case args.Title == nil:
		return nil, fmt.Errorf("tool arguments missing title")
	case args.RiskScore == nil:
		return nil, fmt.Errorf("tool arguments missing riskScore")
	case args.Analysis == nil:
		return nil, fmt.Errorf("tool arguments missing analysis")
	}

	return &models.Analysis{
		Name:      *args.Name,
		Title:     *args.Title,
		RiskScore: models.ClampRiskScore(*args.RiskScore),
		Rationale: *args.Analysis,
	}, nil
}

func kindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUpstreamFailure
}
