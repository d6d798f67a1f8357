package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"
	requestTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

var (
	// ErrUnconfigured means no API key was supplied.
	ErrUnconfigured = errors.New("directions API key not configured")
	// ErrUpstream wraps every failure talking to the directions provider.
	ErrUpstream = errors.New("directions API error")
)

// Config holds directions provider configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

// Service proxies route lookups to the Google Directions API and returns
// the provider's JSON untouched.
type Service struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewService creates a directions service with the given configuration.
func NewService(cfg Config) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Service{
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
	}
}

// Configured reports whether an API key is present.
func (s *Service) Configured() bool {
	return s.apiKey != ""
}

// Route fetches directions from origin to destination.
func (s *Service) Route(ctx context.Context, origin, destination string) (json.RawMessage, error) {
	if !s.Configured() {
		return nil, ErrUnconfigured
	}

	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	q.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error carries the full URL including the key, so only the cause is kept.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%w: request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream returned status %d", ErrUpstream, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: upstream returned invalid JSON", ErrUpstream)
	}
	return json.RawMessage(body), nil
}
