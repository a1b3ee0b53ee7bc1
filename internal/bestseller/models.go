package bestseller

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

// RawListItem is one ranked entry from the bestseller list.
type RawListItem struct {
	PrimaryISBN13 Value
	PrimaryISBN10 Value
	Title         string
	Author        string
	Publisher     string
	Description   string
	Rank          Value
	WeeksOnList   Value
	BuyLinks      json.RawMessage // [{name, url}]
}

// DetailRecord is the catalog's bibliographic record for one ISBN.
type DetailRecord struct {
	Title         string
	URL           string
	Publishers    json.RawMessage // [{name}]
	PublishPlaces json.RawMessage // [{name}]
	NumberOfPages Value
	Weight        Value
	Cover         json.RawMessage // {small, medium, large}
}

// EnrichedRecord is a list item merged with its detail record.
type EnrichedRecord struct {
	PrimaryISBN13     Value
	PrimaryISBN10     Value
	Title             string
	Author            string
	Publisher         string
	Description       string
	Rank              Value
	WeeksOnList       Value
	BuyLinks          json.RawMessage
	URL               string
	Publishers        json.RawMessage
	PublishPlaces     json.RawMessage
	NumberOfPages     Value
	Weight            Value
	Cover             json.RawMessage
	ListPublishedDate string
	Enriched          bool
}

// SkippedItem is a list entry dropped because its detail lookup kept failing.
type SkippedItem struct {
	Position int
	ISBN13   string
	Err      error
}

// EnrichedTable is the aggregator's output. Rows keep the list order.
type EnrichedTable struct {
	ListName          string
	ListPublishedDate string
	Listed            int
	Rows              []EnrichedRecord
	Skipped           []SkippedItem
}

// Columns is the canonical column order of the books table.
var Columns = []string{
	"primary_isbn13",
	"primary_isbn10",
	"title",
	"author",
	"publisher",
	"description",
	"list_published_date",
	"rank",
	"weeks_on_list",
	"number_of_pages",
	"weight",
	"cover_small",
	"cover_large",
	"url",
	"amazon_buy_link",
	"apple_buy_link",
	"book_shop_buy_link",
	"ingested_at",
}

// BookRecord is one row of the books table. Nil pointers are NULLs.
type BookRecord struct {
	PrimaryISBN13     *string     `db:"primary_isbn13" validate:"omitempty,isbn=13"`
	PrimaryISBN10     *string     `db:"primary_isbn10" validate:"omitempty,isbn=10"`
	Title             *string     `db:"title"`
	Author            *string     `db:"author"`
	Publisher         *string     `db:"publisher"`
	Description       *string     `db:"description"`
	ListPublishedDate *civil.Date `db:"list_published_date"`
	Rank              *int64      `db:"rank"`
	WeeksOnList       *int64      `db:"weeks_on_list" validate:"omitempty,gte=0"`
	NumberOfPages     *int64      `db:"number_of_pages" validate:"omitempty,gte=0"`
	Weight            *float64    `db:"weight" validate:"omitempty,gte=0"` // ounces
	CoverSmall        *string     `db:"cover_small" validate:"omitempty,url"`
	CoverLarge        *string     `db:"cover_large" validate:"omitempty,url"`
	URL               *string     `db:"url" validate:"omitempty,url"`
	AmazonBuyLink     *string     `db:"amazon_buy_link" validate:"omitempty,url"`
	AppleBuyLink      *string     `db:"apple_buy_link" validate:"omitempty,url"`
	BookShopBuyLink   *string     `db:"book_shop_buy_link" validate:"omitempty,url"`
	IngestedAt        time.Time   `db:"ingested_at"`
}

// Values returns the row in Columns order with NULLs as nil. Dates become midnight UTC.
func (r BookRecord) Values() []any {
	var date any
	if r.ListPublishedDate != nil {
		date = r.ListPublishedDate.In(time.UTC)
	}
	return []any{
		strOrNil(r.PrimaryISBN13),
		strOrNil(r.PrimaryISBN10),
		strOrNil(r.Title),
		strOrNil(r.Author),
		strOrNil(r.Publisher),
		strOrNil(r.Description),
		date,
		intOrNil(r.Rank),
		intOrNil(r.WeeksOnList),
		intOrNil(r.NumberOfPages),
		floatOrNil(r.Weight),
		strOrNil(r.CoverSmall),
		strOrNil(r.CoverLarge),
		strOrNil(r.URL),
		strOrNil(r.AmazonBuyLink),
		strOrNil(r.AppleBuyLink),
		strOrNil(r.BookShopBuyLink),
		r.IngestedAt,
	}
}

// BookTable is the reshaped, load-ready table.
type BookTable struct {
	Columns  []string
	Rows     []BookRecord
	Warnings []CoercionWarning
}

func strOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
