package extract

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const extractionPrompt = `Analyze this %KIND% content and extract ONLY decision-making context and insights.
Do NOT include any personal data, only patterns and decisions.

Content: %CONTENT%

Extract and return as JSON:
{
  "summary": "Brief summary of the main point or decision",
  "concepts": ["key", "technical", "concepts"],
  "decision_rationale": "What decision was being made or considered?"
}

Focus on technical decisions and reasoning, problem-solving approaches, and insights.
Ignore personal details, specific data values, and private information.`

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// LLMExtractor calls an OpenAI-compatible chat endpoint (Ollama's /v1 API
// works) to produce the semantic fragment. Every failure — timeout, transport,
// unparseable output — degrades to the deterministic heuristic, so callers
// never see an extraction error.
type LLMExtractor struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	limiter  *rate.Limiter
	fallback Heuristic
}

// NewLLMExtractor builds an extractor against the given OpenAI-compatible
// base URL. The limiter bounds outbound call rate so a burst of ingestion
// cannot saturate a local model.
func NewLLMExtractor(baseURL, apiKey, model string, timeout time.Duration) *LLMExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMExtractor{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(2), 4), // 2 calls/sec, burst 4
	}
}

func (e *LLMExtractor) Name() string { return "llm:" + e.model }

// Extract asks the model for a JSON fragment and falls back to the heuristic
// on any failure.
func (e *LLMExtractor) Extract(ctx context.Context, content, contentKind string) (Result, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return e.fallback.Extract(ctx, content, contentKind)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := strings.NewReplacer(
		"%KIND%", contentKind,
		"%CONTENT%", content,
	).Replace(extractionPrompt)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		log.Printf("⚠️  [EXTRACT] LLM call failed, using heuristic: %v", err)
		return e.fallback.Extract(ctx, content, contentKind)
	}
	if len(resp.Choices) == 0 {
		return e.fallback.Extract(ctx, content, contentKind)
	}

	result, ok := parseExtraction(resp.Choices[0].Message.Content)
	if !ok {
		log.Printf("⚠️  [EXTRACT] Unparseable LLM output, using heuristic")
		return e.fallback.Extract(ctx, content, contentKind)
	}

	// The model occasionally returns an empty summary; the record store
	// requires one, so patch it from the heuristic.
	if strings.TrimSpace(result.Summary) == "" {
		result.Summary = summarize(content)
	}
	if len(result.Concepts) > maxConcepts {
		result.Concepts = result.Concepts[:maxConcepts]
	}
	return result, nil
}

func parseExtraction(output string) (Result, bool) {
	block := jsonBlockRe.FindString(output)
	if block == "" {
		return Result{}, false
	}

	var parsed struct {
		Summary           string   `json:"summary"`
		Concepts          []string `json:"concepts"`
		DecisionRationale string   `json:"decision_rationale"`
	}
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return Result{}, false
	}

	return Result{
		Summary:           parsed.Summary,
		Concepts:          parsed.Concepts,
		DecisionRationale: parsed.DecisionRationale,
	}, true
}
