package bestseller

import (
	"context"

	"bestsellers/internal/platform/nytimes"
	"bestsellers/internal/platform/openlibrary"
)

// ListFetcher retrieves the current bestseller list.
type ListFetcher interface {
	GetCurrentList(ctx context.Context) (*nytimes.ListResponse, error)
}

// DetailFetcher retrieves catalog records keyed by bibkey for one ISBN.
type DetailFetcher interface {
	GetBookByISBN(ctx context.Context, isbn string) (map[string]openlibrary.BookDetails, error)
}
