package ai

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrEmptyInput    = errors.New("embedding input is empty")
	ErrEmptyResponse = errors.New("empty response from provider")
	ErrNoCredentials = errors.New("no provider credentials configured")
)

// ProviderError is returned for every failed provider call. Transient marks
// quota and rate-limit failures, the only ones a degraded fallback may absorb.
type ProviderError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Transient {
		return fmt.Sprintf("%s failed (transient): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a quota or rate-limit provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Transient: isQuotaError(err), Err: err}
}

func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && isQuotaCode(code) {
			return true
		}
		return isQuotaCode(apiErr.Type)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func isQuotaCode(code string) bool {
	return code == "insufficient_quota" || code == "rate_limit_exceeded"
}
