// Package assistant answers farmer questions about pond conditions using
// the Gemini language service, with a keyword-matching fallback so a
// question always gets an answer even when the service is unreachable.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/errors"
	"github.com/pondwatch/pondwatch-go/internal/logging"
	"github.com/pondwatch/pondwatch-go/internal/observability"
	"github.com/pondwatch/pondwatch-go/internal/retry"
)

// Response modes reported to callers and metrics.
const (
	ModeLLM      = "llm"
	ModeFallback = "fallback"
)

const contextCacheKey = "farm-context"

// LanguageClient generates one answer for one prompt. Satisfied by
// GeminiClient and by test doubles.
type LanguageClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Response is one assistant answer.
type Response struct {
	Answer            string           `json:"response"`
	FollowUpQuestions []string         `json:"follow_up_questions"`
	Metadata          ResponseMetadata `json:"metadata"`
}

// ResponseMetadata describes how an answer was produced.
type ResponseMetadata struct {
	Mode             string `json:"mode"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// Assistant answers queries against the monitoring data.
type Assistant struct {
	settings *conf.Settings
	store    datastore.Interface
	client   LanguageClient
	policy   *retry.Policy
	cache    *gocache.Cache
	log      *slog.Logger
}

// Option adjusts an Assistant. Used by tests to inject clients and
// compressed-time retry policies.
type Option func(*Assistant)

// WithClient overrides the language client.
func WithClient(c LanguageClient) Option {
	return func(a *Assistant) { a.client = c }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p *retry.Policy) Option {
	return func(a *Assistant) { a.policy = p }
}

// New builds an assistant from settings. The retry policy is derived from
// the configured retry parameters, falling back to the defaults when unset.
func New(settings *conf.Settings, store datastore.Interface, opts ...Option) *Assistant {
	cfg := &settings.Assistant

	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	a := &Assistant{
		settings: settings,
		store:    store,
		client:   NewGeminiClient(cfg),
		policy:   policyFromSettings(&cfg.Retry),
		cache:    gocache.New(ttl, 2*ttl),
		log:      logging.ForService("assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func policyFromSettings(r *conf.RetrySettings) *retry.Policy {
	if r.MaxRetries <= 0 {
		return retry.DefaultPolicy()
	}
	return retry.NewPolicy(
		r.MaxRetries,
		time.Duration(r.BaseDelayMs)*time.Millisecond,
		time.Duration(r.MaxDelayMs)*time.Millisecond,
		r.Multiplier,
		r.JitterFraction,
	)
}

// HasCredentials reports whether a language-service API key is configured.
func (a *Assistant) HasCredentials() bool {
	return a.settings.Assistant.APIKey != ""
}

// Query answers one question. The language service is tried first with
// retries; any remaining failure, or a missing API key, falls back to the
// keyword responder so the caller always receives a usable answer.
func (a *Assistant) Query(ctx context.Context, query string) (*Response, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Newf("query must not be empty").
			Component("assistant").
			Category(errors.CategoryValidation).
			Build()
	}

	fc := a.farmContext()

	if !a.HasCredentials() {
		a.log.Debug("no language-service credentials, answering from fallback")
		return a.fallback(query, fc, start), nil
	}

	prompt := buildPrompt(query, fc)

	var answer string
	attempts := 0
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		text, genErr := a.client.Generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		answer = text
		return nil
	})
	if attempts > 1 {
		observability.RetryAttempts.Add(float64(attempts - 1))
	}
	if err != nil {
		a.log.Warn("language service failed, answering from fallback",
			"attempts", attempts, "error", err)
		return a.fallback(query, fc, start), nil
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		a.log.Warn("language service returned a blank answer, answering from fallback")
		return a.fallback(query, fc, start), nil
	}

	observability.AssistantRequests.WithLabelValues(ModeLLM).Inc()
	return &Response{
		Answer:            answer,
		FollowUpQuestions: followUps(fc),
		Metadata: ResponseMetadata{
			Mode:             ModeLLM,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

func (a *Assistant) fallback(query string, fc *farmContext, start time.Time) *Response {
	observability.AssistantRequests.WithLabelValues(ModeFallback).Inc()
	return &Response{
		Answer:            fallbackAnswer(query, fc),
		FollowUpQuestions: followUps(fc),
		Metadata: ResponseMetadata{
			Mode:             ModeFallback,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
}

// farmContext loads the cached monitoring snapshot, refreshing it from the
// datastore when the TTL has lapsed. Store failures degrade to an empty
// snapshot rather than failing the query.
func (a *Assistant) farmContext() *farmContext {
	if cached, ok := a.cache.Get(contextCacheKey); ok {
		if fc, ok := cached.(*farmContext); ok {
			return fc
		}
	}

	fc := &farmContext{}

	latest, err := a.store.LatestAssessment()
	if err != nil {
		a.log.Warn("loading latest assessment for assistant context", "error", err)
	}
	fc.Latest = latest

	window := a.settings.Assistant.ContextWindow
	if window <= 0 {
		window = 5
	}
	if recent, err := a.store.GetRecentAssessments(window); err == nil {
		fc.Recent = recent
	} else {
		a.log.Warn("loading recent assessments for assistant context", "error", err)
	}

	if alerts, err := a.store.GetUnreadAlerts(); err == nil {
		fc.UnreadAlerts = alerts
	} else {
		a.log.Warn("loading unread alerts for assistant context", "error", err)
	}

	a.cache.SetDefault(contextCacheKey, fc)
	return fc
}
