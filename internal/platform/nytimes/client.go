package nytimes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bestsellers/internal/platform/fetch"

	"golang.org/x/time/rate"
)

type Client struct {
	getter  *fetch.Getter
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey, userAgent string, rps int) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		getter: &fetch.Getter{
			HTTPClient: &http.Client{Timeout: 100 * time.Second},
			Limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
			UserAgent:  userAgent,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// ListResponse matches lists/current/<list>.json
type ListResponse struct {
	Status     string      `json:"status"`
	NumResults int         `json:"num_results"`
	Results    *ListResult `json:"results"`
}

type ListResult struct {
	ListName              string `json:"list_name"`
	BestsellersDate       string `json:"bestsellers_date"`
	PublishedDate         string `json:"published_date"`
	PreviousPublishedDate string `json:"previous_published_date"`
	Books                 []Book `json:"books"`
}

// Book is one ranked entry. Identifier and counter fields arrive as strings or numbers
// depending on the list, so they are kept raw.
type Book struct {
	PrimaryISBN13    json.RawMessage `json:"primary_isbn13"`
	PrimaryISBN10    json.RawMessage `json:"primary_isbn10"`
	Title            string          `json:"title"`
	Author           string          `json:"author"`
	Publisher        string          `json:"publisher"`
	Description      string          `json:"description"`
	Rank             json.RawMessage `json:"rank"`
	WeeksOnList      json.RawMessage `json:"weeks_on_list"`
	AmazonProductURL string          `json:"amazon_product_url"`
	BookImage        string          `json:"book_image"`
	BuyLinks         json.RawMessage `json:"buy_links"`
}

// GetCurrentList fetches the configured list once.
func (c *Client) GetCurrentList(ctx context.Context) (*ListResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse list url: %v", fetch.ErrFetchFailed, err)
	}
	q := u.Query()
	q.Set("api-key", c.apiKey)
	u.RawQuery = q.Encode()

	var res ListResponse
	if err := c.getter.GetJSON(ctx, u.String(), &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		return nil, fmt.Errorf("%w: list response has no results", fetch.ErrMalformedResponse)
	}
	return &res, nil
}
