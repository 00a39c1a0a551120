package ai

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"github.com/nhle/smarttask/internal/metrics"
	"github.com/nhle/smarttask/internal/model"
)

const (
	// PlaceholderKey is the sample value shipped in example configs. It is
	// treated the same as no key at all.
	PlaceholderKey = "your-api-key-here"

	mockSummaryLimit   = 50
	mockEstimatedHours = 2
	mockNarrative      = "Configure an OpenAI API key to get detailed AI analysis."
)

// CredentialResolver returns the AI key that applies to a user.
type CredentialResolver interface {
	ResolveAICredential(ctx context.Context, userID int64) (string, error)
}

// Config holds the engine's provider settings.
type Config struct {
	Model     string
	MaxTokens int
	BaseURL   string
	Timeout   time.Duration
}

// Engine analyzes tasks with the language model, falling back to a
// deterministic offline result whenever the provider is unavailable.
type Engine struct {
	creds     CredentialResolver
	sink      metrics.Sink
	newClient ClientFactory
	model     string
	maxTokens int
	timeout   time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClientFactory replaces the OpenAI HTTP client.
func WithClientFactory(f ClientFactory) Option {
	return func(e *Engine) { e.newClient = f }
}

// NewEngine creates an Engine. Zero config values fall back to defaults.
func NewEngine(creds CredentialResolver, sink metrics.Sink, cfg Config, opts ...Option) *Engine {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = requestTimeout
	}
	if sink == nil {
		sink = metrics.Nop{}
	}

	baseURL := cfg.BaseURL
	e := &Engine{
		creds:     creds,
		sink:      sink,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		newClient: func(apiKey string) Completer { return NewOpenAIClient(apiKey, baseURL) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze returns an AnalysisResult for req. Provider failures never reach
// the caller: they are logged and replaced by MockResult. The returned error
// is non-nil only for an invalid request or when the user's credentials
// cannot be read (for example a CryptoError from the vault).
func (e *Engine) Analyze(ctx context.Context, req model.AnalysisRequest, userID int64) (model.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return model.AnalysisResult{}, err
	}

	var result model.AnalysisResult
	err := metrics.Trace(ctx, e.sink, "ai.Analyze", func(ctx context.Context) error {
		var err error
		result, err = e.analyze(ctx, req, userID)
		return err
	})
	return result, err
}

func (e *Engine) analyze(ctx context.Context, req model.AnalysisRequest, userID int64) (model.AnalysisResult, error) {
	start := time.Now()
	success := false
	defer func() {
		e.sink.RecordAnalysis(success)
		e.sink.RecordAnalysisDuration(time.Since(start))
	}()

	apiKey, err := e.creds.ResolveAICredential(ctx, userID)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	if needsFallback(apiKey) {
		return MockResult(req.Text), nil
	}

	text, err := e.complete(ctx, apiKey, analysisMessages(req.Text, req.Context))
	if err != nil {
		log.Printf("ai: analysis for user %d failed, using offline result: %v", userID, err)
		return MockResult(req.Text), nil
	}

	success = true
	return ParseResponse(text), nil
}

// GenerateProductivityReport summarizes completed work. Without a usable
// provider it renders a fixed offline report; otherwise it returns the
// model's narrative as is.
func (e *Engine) GenerateProductivityReport(
	ctx context.Context,
	completedTitles []string,
	totalHours int,
	userID int64,
) (string, error) {
	var report string
	err := metrics.Trace(ctx, e.sink, "ai.GenerateProductivityReport", func(ctx context.Context) error {
		apiKey, err := e.creds.ResolveAICredential(ctx, userID)
		if err != nil {
			return err
		}
		if needsFallback(apiKey) {
			report = fallbackReport(len(completedTitles), totalHours)
			return nil
		}

		msgs := []Message{{Role: "user", Content: buildReportPrompt(completedTitles, totalHours)}}
		text, err := e.complete(ctx, apiKey, msgs)
		if err != nil {
			log.Printf("ai: productivity report for user %d failed, using offline report: %v", userID, err)
			report = fallbackReport(len(completedTitles), totalHours)
			return nil
		}
		report = text
		return nil
	})
	return report, err
}

func (e *Engine) complete(ctx context.Context, apiKey string, msgs []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.newClient(apiKey).Complete(ctx, CompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: temperature,
		Messages:    msgs,
	})
}

func needsFallback(apiKey string) bool {
	return apiKey == "" || apiKey == PlaceholderKey
}

// MockResult is the deterministic offline analysis of text.
func MockResult(text string) model.AnalysisResult {
	summary := text
	if utf8.RuneCountInString(summary) > mockSummaryLimit {
		summary = string([]rune(summary)[:mockSummaryLimit])
	}
	hours := mockEstimatedHours
	return model.AnalysisResult{
		Summary:        "Task analyzed: " + summary,
		Priority:       model.PriorityMedium,
		EstimatedHours: &hours,
		Tags:           []string{"general", "pending"},
		SubtaskTitles:  []string{},
		Narrative:      mockNarrative,
	}
}
