package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bestsellers/internal/logger"
	"bestsellers/internal/platform/fetch"

	"golang.org/x/time/rate"
)

const DefaultBooksURL = "https://openlibrary.org/api/books"

type Client struct {
	getter   *fetch.Getter
	booksURL string
}

func NewClient(booksURL, userAgent string, rps int) *Client {
	if booksURL == "" {
		booksURL = DefaultBooksURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		getter: &fetch.Getter{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
			Limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
			UserAgent:  userAgent,
		},
		booksURL: booksURL,
	}
}

// Publisher is one entry of BookDetails.Publishers.
type Publisher struct {
	Name string `json:"name"`
}

// BookDetails matches api/books?jscmd=data. Catalog records are edited by hand and the
// nested fields do not always have the documented shape, so they stay raw until reshaping.
type BookDetails struct {
	URL           string          `json:"url"`
	Key           string          `json:"key"`
	Title         string          `json:"title"`
	Publishers    json.RawMessage `json:"publishers"`
	PublishPlaces json.RawMessage `json:"publish_places"`
	PublishDate   string          `json:"publish_date"`
	NumberOfPages json.RawMessage `json:"number_of_pages"`
	Weight        json.RawMessage `json:"weight"`
	Cover         json.RawMessage `json:"cover"`
}

// BibKey builds the synthetic key the books API uses for an ISBN.
func BibKey(isbn string) string {
	return "ISBN:" + isbn
}

// GetBookByISBN looks up one ISBN. An empty map means the catalog has no record.
func (c *Client) GetBookByISBN(ctx context.Context, isbn string) (map[string]BookDetails, error) {
	body, err := c.fetch(ctx, isbn)
	if err != nil {
		return nil, err
	}
	return decodeBooks(ctx, isbn, body)
}

func (c *Client) fetch(ctx context.Context, isbn string) ([]byte, error) {
	u, err := url.Parse(c.booksURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse books url: %v", fetch.ErrFetchFailed, err)
	}
	q := u.Query()
	q.Set("bibkeys", BibKey(isbn))
	q.Set("format", "json")
	q.Set("jscmd", "data")
	u.RawQuery = q.Encode()

	return c.getter.GetRaw(ctx, u.String())
}

func decodeBooks(ctx context.Context, isbn string, body []byte) (map[string]BookDetails, error) {
	res := map[string]BookDetails{}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: decode books for %s: %v", fetch.ErrMalformedResponse, isbn, err)
	}

	log := logger.FromContext(ctx)
	if len(res) == 0 {
		log.Info().Str("isbn", isbn).Msg("open library data not found")
	} else {
		log.Info().Str("isbn", isbn).Msg("fetched open library data")
	}
	return res, nil
}
