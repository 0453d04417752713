package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"findash/internal/metrics"
	"findash/internal/ratelimit"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// httpSource holds what every HTTP-backed provider shares
type httpSource struct {
	name    string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// doJSON waits for the limiter, sends req and decodes a 200 JSON body into out.
// Failures are returned as *ProviderError.
func (s *httpSource) doJSON(ctx context.Context, req *http.Request, out any) (err error) {
	defer func() {
		metrics.ObserveProviderRequest(s.name, err)
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: s.name, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.limiter.SignalRateLimited()
		return newError(s.name, true, "rate limited")
	}
	if resp.StatusCode >= 500 {
		return newError(s.name, true, "status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return newError(s.name, false, "status %d: %s", resp.StatusCode, body)
	}

	s.limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: s.name, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
