// Package llm provides the prompted-completion client used by every
// pipeline stage, with rate limiting, retries and batch execution.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"veilleur/internal/core"
	"veilleur/internal/logger"
)

const (
	// DefaultModel is the Groq model used when none is configured.
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultBaseURL points at Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	defaultTemperature  = 0.3
	defaultMaxTokens    = 2000
	defaultMaxRetries   = 3
	defaultRateLimit    = 30
	defaultBatchWorkers = 3
)

// Params are the per-call generation options.
type Params struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	Model            string
}

// Options configures a Client.
type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RateLimitRequests int
	BatchConcurrency  int
}

// completer is the transport seam; the production implementation calls
// the Groq API through the OpenAI SDK.
type completer interface {
	complete(ctx context.Context, prompt, systemPrompt string, params Params) (string, error)
}

// Client is a rate-limited, retrying completion client.
type Client struct {
	caller      completer
	model       string
	maxRetries  int
	limiter     *RateLimiter
	batchCap    int
	backoffUnit time.Duration
	stagger     time.Duration
}

// NewClient creates a Groq-backed client. The API key is required.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: LLM API key is required", core.ErrConfig)
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	sdk := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0), // retry policy lives in this package
	)

	return newClient(&groqCaller{client: sdk, model: model}, model, opts), nil
}

func newClient(caller completer, model string, opts Options) *Client {
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	rateLimit := opts.RateLimitRequests
	if rateLimit == 0 {
		rateLimit = defaultRateLimit
	}
	batchCap := opts.BatchConcurrency
	if batchCap == 0 {
		batchCap = defaultBatchWorkers
	}
	return &Client{
		caller:      caller,
		model:       model,
		maxRetries:  maxRetries,
		limiter:     NewRateLimiter(rateLimit, time.Minute),
		batchCap:    batchCap,
		backoffUnit: time.Second,
		stagger:     500 * time.Millisecond,
	}
}

// Completion issues a single prompted completion, waiting on the rate
// limiter and retrying transient failures with exponential backoff.
func (c *Client) Completion(ctx context.Context, prompt, systemPrompt string, params *Params) (string, error) {
	p := c.normalize(params)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrRateLimited, err)
		}

		text, err := c.caller.complete(ctx, prompt, systemPrompt, p)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("empty response from model")
		}
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", core.ErrTimeout, ctx.Err())
		}
		if attempt == c.maxRetries {
			break
		}

		delay := c.backoffUnit * (1 << attempt)
		if ra, ok := retryAfter(err); ok {
			delay = ra
		}
		logger.Warn("llm call failed, retrying", "attempt", attempt+1, "delay", delay.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", core.ErrTimeout, ctx.Err())
		case <-time.After(delay):
		}
	}

	if isRateLimit(lastErr) {
		return "", fmt.Errorf("%w: %v", core.ErrRateLimited, lastErr)
	}
	return "", fmt.Errorf("%w: %v", core.ErrLLMFailure, lastErr)
}

// Batch runs prompts with a bounded worker count, staggering task
// starts to smooth rate-limit pressure. Results preserve input order;
// per-prompt failures become "ERROR: ..." strings.
func (c *Client) Batch(ctx context.Context, prompts []string, systemPrompt string, params *Params) []string {
	results := make([]string, len(prompts))
	sem := make(chan struct{}, c.batchCap)
	done := make(chan int, len(prompts))

	for i, prompt := range prompts {
		go func(idx int, p string) {
			defer func() { done <- idx }()

			if c.stagger > 0 {
				select {
				case <-ctx.Done():
					results[idx] = fmt.Sprintf("ERROR: %v", ctx.Err())
					return
				case <-time.After(time.Duration(idx) * c.stagger):
				}
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			text, err := c.Completion(ctx, p, systemPrompt, params)
			if err != nil {
				results[idx] = fmt.Sprintf("ERROR: %v", err)
				return
			}
			results[idx] = text
		}(i, prompt)
	}

	for range prompts {
		<-done
	}
	return results
}

func (c *Client) normalize(params *Params) Params {
	p := Params{Temperature: defaultTemperature, MaxTokens: defaultMaxTokens, Model: c.model}
	if params == nil {
		return p
	}
	if params.Temperature != 0 {
		p.Temperature = params.Temperature
	}
	if params.MaxTokens != 0 {
		p.MaxTokens = params.MaxTokens
	}
	p.TopP = params.TopP
	p.FrequencyPenalty = params.FrequencyPenalty
	p.PresencePenalty = params.PresencePenalty
	if params.Model != "" {
		p.Model = params.Model
	}
	return p
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Truncate removes trailing sentences until the token estimate fits
// within maxTokens, keeping a 10% safety margin.
func Truncate(text string, maxTokens int) string {
	budget := int(float64(maxTokens)*0.9) * 4
	if len(text) <= budget {
		return text
	}

	sentences := splitSentences(text)
	var sb strings.Builder
	for _, sentence := range sentences {
		if sb.Len()+len(sentence) > budget {
			break
		}
		sb.WriteString(sentence)
	}
	if sb.Len() == 0 && budget > 0 {
		// No sentence boundary fits; hard cut.
		return text[:budget]
	}
	return strings.TrimRight(sb.String(), " ")
}

// splitSentences cuts text after sentence punctuation, keeping the
// punctuation and following space with each sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(text) && (text[end] == ' ' || text[end] == '\n') {
				end++
			}
			sentences = append(sentences, text[start:end])
			i = end - 1
			start = end
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// groqCaller is the production transport over the OpenAI SDK.
type groqCaller struct {
	client openai.Client
	model  string
}

func (g *groqCaller) complete(ctx context.Context, prompt, systemPrompt string, p Params) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	req := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(p.Model),
		Temperature: param.NewOpt(p.Temperature),
		MaxTokens:   param.NewOpt(int64(p.MaxTokens)),
	}
	if p.TopP != 0 {
		req.TopP = param.NewOpt(p.TopP)
	}
	if p.FrequencyPenalty != 0 {
		req.FrequencyPenalty = param.NewOpt(p.FrequencyPenalty)
	}
	if p.PresencePenalty != 0 {
		req.PresencePenalty = param.NewOpt(p.PresencePenalty)
	}

	completion, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// retryAfter extracts the server-provided retry delay from a 429.
func retryAfter(err error) (time.Duration, bool) {
	var apierr *openai.Error
	if !errors.As(err, &apierr) || apierr.StatusCode != 429 || apierr.Response == nil {
		return 0, false
	}
	header := apierr.Response.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	if secs, convErr := strconv.Atoi(header); convErr == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func isRateLimit(err error) bool {
	var apierr *openai.Error
	return errors.As(err, &apierr) && apierr.StatusCode == 429
}
