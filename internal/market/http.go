package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps how much of an upstream response is read
const maxBodyBytes = 8 << 20

// fetcher issues GET requests with a per-call deadline
type fetcher struct {
	client  *http.Client
	timeout time.Duration
	headers map[string]string
	source  string
}

func newFetcher(source string, timeout time.Duration, headers map[string]string) *fetcher {
	return &fetcher{
		client:  &http.Client{},
		timeout: timeout,
		headers: headers,
		source:  source,
	}
}

// get returns the body of a 200 response
func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", f.source, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", f.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", f.source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", f.source, err)
	}
	return body, nil
}

// getJSON decodes a 200 response into v
func (f *fetcher) getJSON(ctx context.Context, url string, v any) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrUnexpectedPayload, f.source, err)
	}
	return nil
}
