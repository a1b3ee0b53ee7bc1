package bestseller

import (
	"context"
	"fmt"

	"bestsellers/internal/logger"
	"bestsellers/internal/platform/fetch"
	"bestsellers/internal/platform/nytimes"
	"bestsellers/internal/platform/openlibrary"
	"bestsellers/internal/platform/retry"
)

type Aggregator struct {
	lists   ListFetcher
	details DetailFetcher
	policy  retry.Policy
}

func NewAggregator(lists ListFetcher, details DetailFetcher, policy retry.Policy) *Aggregator {
	return &Aggregator{lists: lists, details: details, policy: policy}
}

// Fetch retrieves the list and enriches every item with its catalog record. A list
// failure aborts the run; a detail failure only skips that item.
func (a *Aggregator) Fetch(ctx context.Context) (EnrichedTable, error) {
	log := logger.FromContext(ctx)

	list, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*nytimes.ListResponse, error) {
		res, err := a.lists.GetCurrentList(ctx)
		return res, classify(err)
	})
	if err != nil {
		return EnrichedTable{}, fmt.Errorf("fetch bestseller list: %w", err)
	}
	if list == nil || list.Results == nil {
		return EnrichedTable{}, fmt.Errorf("fetch bestseller list: %w: no results", fetch.ErrMalformedResponse)
	}

	table := EnrichedTable{
		ListName:          list.Results.ListName,
		ListPublishedDate: list.Results.PreviousPublishedDate,
		Listed:            len(list.Results.Books),
		Rows:              make([]EnrichedRecord, 0, len(list.Results.Books)),
	}
	log.Info().
		Str("list", table.ListName).
		Str("list_published_date", table.ListPublishedDate).
		Int("books", table.Listed).
		Msg("fetched bestseller list")

	for i, book := range list.Results.Books {
		item := toRawListItem(book)

		isbn, ok := item.PrimaryISBN13.Identifier()
		if !ok {
			log.Warn().Int("position", i).Str("title", item.Title).Msg("list item has no ISBN-13, skipping catalog lookup")
			table.Rows = append(table.Rows, merge(item, nil, table.ListPublishedDate))
			continue
		}

		details, err := retry.Do(ctx, a.policy, func(ctx context.Context) (map[string]openlibrary.BookDetails, error) {
			res, err := a.details.GetBookByISBN(ctx, isbn)
			return res, classify(err)
		})
		if err != nil {
			if ctx.Err() != nil {
				return EnrichedTable{}, ctx.Err()
			}
			log.Error().Err(err).Int("position", i).Str("isbn", isbn).Msg("failed to process book, skipping")
			table.Skipped = append(table.Skipped, SkippedItem{Position: i, ISBN13: isbn, Err: err})
			continue
		}

		var detail *DetailRecord
		if d, ok := details[openlibrary.BibKey(isbn)]; ok {
			rec := toDetailRecord(d)
			detail = &rec
		}
		table.Rows = append(table.Rows, merge(item, detail, table.ListPublishedDate))
	}

	log.Info().
		Int("rows", len(table.Rows)).
		Int("skipped", len(table.Skipped)).
		Msg("enrichment complete")
	return table, nil
}

// classify stops the retry loop on errors another attempt cannot fix.
func classify(err error) error {
	if err != nil && fetch.IsPermanent(err) {
		return retry.Permanent(err)
	}
	return err
}

func toRawListItem(b nytimes.Book) RawListItem {
	return RawListItem{
		PrimaryISBN13: Value(b.PrimaryISBN13),
		PrimaryISBN10: Value(b.PrimaryISBN10),
		Title:         b.Title,
		Author:        b.Author,
		Publisher:     b.Publisher,
		Description:   b.Description,
		Rank:          Value(b.Rank),
		WeeksOnList:   Value(b.WeeksOnList),
		BuyLinks:      b.BuyLinks,
	}
}

func toDetailRecord(d openlibrary.BookDetails) DetailRecord {
	return DetailRecord{
		Title:         d.Title,
		URL:           d.URL,
		Publishers:    d.Publishers,
		PublishPlaces: d.PublishPlaces,
		NumberOfPages: Value(d.NumberOfPages),
		Weight:        Value(d.Weight),
		Cover:         d.Cover,
	}
}

// merge starts from the list item and overlays the detail record. The catalog title is
// the only field both sources carry; it wins when present.
func merge(item RawListItem, detail *DetailRecord, publishedDate string) EnrichedRecord {
	rec := EnrichedRecord{
		PrimaryISBN13:     item.PrimaryISBN13,
		PrimaryISBN10:     item.PrimaryISBN10,
		Title:             item.Title,
		Author:            item.Author,
		Publisher:         item.Publisher,
		Description:       item.Description,
		Rank:              item.Rank,
		WeeksOnList:       item.WeeksOnList,
		BuyLinks:          item.BuyLinks,
		ListPublishedDate: publishedDate,
	}
	if detail == nil {
		return rec
	}

	rec.Enriched = true
	if detail.Title != "" {
		rec.Title = detail.Title
	}
	rec.URL = detail.URL
	rec.Publishers = detail.Publishers
	rec.PublishPlaces = detail.PublishPlaces
	rec.NumberOfPages = detail.NumberOfPages
	rec.Weight = detail.Weight
	rec.Cover = detail.Cover
	return rec
}
