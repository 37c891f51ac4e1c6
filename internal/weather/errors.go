package weather

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidZipCode      = errors.New("invalid zip code format")
	ErrMissingAPIKey       = errors.New("weather api key not configured")
	ErrDailyLimitExceeded  = errors.New("openweather daily limit exceeded")
	ErrLocationNotFound    = errors.New("location not found")
	ErrInvalidCredentials  = errors.New("openweather rejected api key")
	ErrProviderUnavailable = errors.New("openweather unavailable")
)

// RateLimitError is returned when the daily window is exhausted.
type RateLimitError struct {
	Status LimitStatus
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %d/%d used, resets at %s",
		ErrDailyLimitExceeded, e.Status.Used, e.Status.Limit, e.Status.ResetAt.Format("2006-01-02T15:04:05Z07:00"))
}

func (e *RateLimitError) Unwrap() error { return ErrDailyLimitExceeded }

// ProviderError is a failed call to the weather provider. StatusCode is zero
// when no HTTP response was received.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "provider call failed"
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classify maps a provider failure onto the lookup error taxonomy.
func classify(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrLocationNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

// Outcome names a lookup result for logs, metrics and the journal.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidZipCode):
		return "invalid_input"
	case errors.Is(err, ErrMissingAPIKey):
		return "missing_configuration"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "rate_limited"
	case errors.Is(err, ErrLocationNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "provider_unavailable"
	}
}
