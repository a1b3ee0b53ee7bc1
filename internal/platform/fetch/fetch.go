package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"

	"golang.org/x/time/rate"
)

var (
	// ErrFetchFailed covers transport errors and non-success HTTP statuses.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrMalformedResponse means the body arrived but could not be used.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrFetchFailed }

// Retryable reports whether a later attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Getter performs one paced GET request and decodes a JSON body.
type Getter struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
}

// GetJSON makes exactly one request; retrying is left to the caller.
func (g *Getter) GetJSON(ctx context.Context, url string, target interface{}) error {
	body, err := g.GetRaw(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, redactQuery(url), err)
	}
	return nil
}

// GetRaw returns the response body of a successful GET.
func (g *Getter) GetRaw(ctx context.Context, url string) ([]byte, error) {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}
	if g.UserAgent != "" {
		req.Header.Set("User-Agent", g.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		var ue *neturl.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrFetchFailed, redactQuery(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: redactQuery(url)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	return body, nil
}

// IsPermanent reports whether err should stop a retry loop.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Retryable()
	}
	return false
}

// redactQuery drops the query string so API keys stay out of errors and logs.
func redactQuery(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' {
			return url[:i]
		}
	}
	return url
}
