// Package ai turns template-generated requirement drafts into sharper
// instructions for the external execution agent. The loop works without
// it: when no API key is configured the action engine simply ships the
// raw template.
package ai

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultModel balances cost against the quality needed for
	// requirement editing.
	DefaultModel = "claude-3-5-haiku-20241022"

	defaultMaxTokens      = 1024
	defaultMaxConcurrent  = 2
	defaultRequestTimeout = 60 * time.Second
)

// Refiner rewrites requirement drafts via the Anthropic API. Concurrent
// calls are bounded by a weighted semaphore so a burst of auto-fix
// generation cannot stampede the API.
type Refiner struct {
	client  *anthropic.Client
	model   string
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Config holds refiner configuration.
type Config struct {
	// APIKey is the Anthropic API key. Empty falls back to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string
	// Model overrides DefaultModel.
	Model string
	// MaxConcurrent bounds in-flight API calls. Default: 2.
	MaxConcurrent int
	// RequestTimeout bounds one API call. Default: 60s.
	RequestTimeout time.Duration
}

// NewRefiner creates a refiner, or returns nil, nil when no API key is
// available. A nil refiner is a valid "feature off" result, not an
// error.
func NewRefiner(cfg Config) (*Refiner, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, nil
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Refiner{
		client:  &client,
		model:   model,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
	}, nil
}

// RefineRequirement rewrites a requirement draft into a tighter
// instruction for the execution agent. The returned text replaces the
// draft verbatim, so failures must be handled by the caller falling
// back to the original.
func (r *Refiner) RefineRequirement(ctx context.Context, requirement string, targetFiles []string) (string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquiring API slot: %w", err)
	}
	defer r.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(refinePrompt(requirement, targetFiles))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	refined := strings.TrimSpace(text.String())
	if refined == "" {
		return "", fmt.Errorf("empty refinement response")
	}

	log.Printf("ai: refined requirement in %v (input=%d output=%d tokens)",
		time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return refined, nil
}

func refinePrompt(requirement string, targetFiles []string) string {
	var b strings.Builder
	b.WriteString("You are preparing a work order for an automated coding agent.\n")
	b.WriteString("Rewrite the requirement below so the agent can act on it without guessing:\n")
	b.WriteString("keep the original intent, make the acceptance criteria explicit, and stay under 200 words.\n")
	b.WriteString("Respond with the rewritten requirement only, no preamble.\n\n")
	b.WriteString("Target files:\n")
	for _, file := range targetFiles {
		fmt.Fprintf(&b, "- %s\n", file)
	}
	b.WriteString("\nRequirement:\n")
	b.WriteString(requirement)
	return b.String()
}
