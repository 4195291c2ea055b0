// Package llm wraps the external inference collaborators behind a single
// Provider interface. Providers are untrusted regarding latency and
// transient failure; retries and timeouts belong to the run orchestrator,
// not here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider is the interface for all inference backends.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// Sentinel errors for the orchestrator's retry policy. Rate limiting is kept
// distinct from general upstream failure so backoff can be tuned separately.
var (
	ErrUpstream    = errors.New("upstream inference failure")
	ErrRateLimited = errors.New("rate limited by inference provider")
)

// upstreamError wraps a provider failure with its classification.
func upstreamError(provider string, err error) error {
	if looksRateLimited(err) {
		return rateLimitError(provider, err.Error())
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, provider, err)
}

func rateLimitError(provider string, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrRateLimited, provider, detail)
}

// classifyHTTP maps an HTTP status to the error taxonomy.
func classifyHTTP(provider string, status int, body string) error {
	if status == 429 {
		return rateLimitError(provider, body)
	}
	return fmt.Errorf("%w: %s: status=%d body=%s", ErrUpstream, provider, status, body)
}

// Retryable reports whether an inference error is worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstream) || errors.Is(err, ErrRateLimited)
}

// looksRateLimited sniffs SDK error strings that don't expose a status code.
func looksRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota")
}
