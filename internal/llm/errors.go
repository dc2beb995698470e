package llm

import (
	"errors"
	"fmt"
)

// ProviderError reports a transport, authentication, rate-limit or
// decoding failure talking to a model provider.
type ProviderError struct {
	Provider   string
	StatusCode int // zero for transport failures
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func providerErr(provider string, status int, format string, args ...any) error {
	return &ProviderError{Provider: provider, StatusCode: status, Err: fmt.Errorf(format, args...)}
}
