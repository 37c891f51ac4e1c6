package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// maxErrorBody bounds how much of a failed response is kept for logs.
	maxErrorBody = 4 << 10
)

type OpenWeatherFetcher struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenWeatherFetcher(apiKey, baseURL string, timeout time.Duration) *OpenWeatherFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenWeatherFetcher{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether an API key is present.
func (f *OpenWeatherFetcher) Configured() bool {
	return f.apiKey != ""
}

// FetchCurrent requests current conditions for a US zip code in imperial units.
func (f *OpenWeatherFetcher) FetchCurrent(ctx context.Context, zipCode string) (*CurrentConditions, error) {
	q := url.Values{}
	q.Set("zip", zipCode)
	q.Set("appid", f.apiKey)
	q.Set("units", "imperial")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &ProviderError{Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
		default:
			return nil, &ProviderError{Err: fmt.Errorf("do request: %w", err)}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var current CurrentConditions
	if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
		return nil, &ProviderError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &current, nil
}
