package bestseller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bestsellers/internal/logger"
	"bestsellers/internal/platform/openlibrary"

	"cloud.google.com/go/civil"
)

// ErrCoercion is returned by a strict Transformer when a field cannot be converted.
var ErrCoercion = errors.New("type coercion failed")

var errMissing = errors.New("missing value")

const (
	StoreAmazon   = "Amazon"
	StoreApple    = "Apple Books"
	StoreBookshop = "Bookshop.org"
)

type CoercionMode string

const (
	// Lenient turns an unconvertible field into NULL and reports a warning.
	Lenient CoercionMode = "lenient"
	// Strict fails the transform when any field cannot be converted.
	Strict CoercionMode = "strict"
)

// ParseCoercionMode accepts "lenient", "strict" or empty (lenient).
func ParseCoercionMode(s string) (CoercionMode, error) {
	switch CoercionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Lenient:
		return Lenient, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown coercion mode %q", s)
}

// CoercionWarning records a field that could not be converted to its column type.
type CoercionWarning struct {
	Row    int
	Column string
	Raw    string
	Err    error
}

func (w CoercionWarning) Error() string {
	return fmt.Sprintf("row %d column %s: cannot coerce %q: %v", w.Row, w.Column, w.Raw, w.Err)
}

type Transformer struct {
	mode CoercionMode
	now  func() time.Time
}

func NewTransformer(mode CoercionMode, now func() time.Time) *Transformer {
	if mode == "" {
		mode = Lenient
	}
	if now == nil {
		now = time.Now
	}
	return &Transformer{mode: mode, now: now}
}

// Transform reshapes enriched rows into the canonical books table. It never adds or
// drops rows.
func (t *Transformer) Transform(ctx context.Context, in EnrichedTable) (BookTable, error) {
	ingestedAt := t.now().UTC()
	out := BookTable{
		Columns: append([]string(nil), Columns...),
		Rows:    make([]BookRecord, 0, len(in.Rows)),
	}

	for i, rec := range in.Rows {
		c := coercer{row: i}
		out.Rows = append(out.Rows, c.reshape(rec, ingestedAt))
		out.Warnings = append(out.Warnings, c.warnings...)
	}

	log := logger.FromContext(ctx)
	for _, w := range out.Warnings {
		log.Warn().Int("row", w.Row).Str("column", w.Column).Str("raw", w.Raw).Err(w.Err).Msg("coercion failed")
	}

	if t.mode == Strict && len(out.Warnings) > 0 {
		return BookTable{}, fmt.Errorf("%w: %d field(s), first: %v", ErrCoercion, len(out.Warnings), out.Warnings[0])
	}
	log.Info().Int("rows", len(out.Rows)).Int("warnings", len(out.Warnings)).Msg("transformed books")
	return out, nil
}

type coercer struct {
	row      int
	warnings []CoercionWarning
}

func (c *coercer) reshape(rec EnrichedRecord, ingestedAt time.Time) BookRecord {
	small, large := coverURLs(rec.Cover)
	links := buyLinks(rec.BuyLinks)

	return BookRecord{
		PrimaryISBN13:     identifier(rec.PrimaryISBN13),
		PrimaryISBN10:     identifier(rec.PrimaryISBN10),
		Title:             text(rec.Title),
		Author:            text(rec.Author),
		Publisher:         joinNames(rec.Publishers),
		Description:       text(rec.Description),
		ListPublishedDate: c.date("list_published_date", rec.ListPublishedDate),
		Rank:              c.integer("rank", rec.Rank),
		WeeksOnList:       c.integer("weeks_on_list", rec.WeeksOnList),
		NumberOfPages:     c.integer("number_of_pages", rec.NumberOfPages),
		Weight:            c.weight("weight", rec.Weight),
		CoverSmall:        small,
		CoverLarge:        large,
		URL:               text(rec.URL),
		AmazonBuyLink:     links.find(StoreAmazon),
		AppleBuyLink:      links.find(StoreApple),
		BookShopBuyLink:   links.find(StoreBookshop),
		IngestedAt:        ingestedAt,
	}
}

func (c *coercer) warn(column string, raw []byte, err error) {
	c.warnings = append(c.warnings, CoercionWarning{Row: c.row, Column: column, Raw: string(raw), Err: err})
}

func (c *coercer) date(column, s string) *civil.Date {
	p := text(s)
	if p == nil {
		return nil
	}
	d, err := civil.ParseDate(*p)
	if err != nil {
		c.warn(column, []byte(s), err)
		return nil
	}
	return &d
}

func (c *coercer) integer(column string, v Value) *int64 {
	n, err := v.Int()
	if errors.Is(err, errMissing) {
		return nil
	}
	if err != nil {
		c.warn(column, v, err)
		return nil
	}
	return &n
}

func (c *coercer) weight(column string, v Value) *float64 {
	f, err := v.Weight()
	if errors.Is(err, errMissing) {
		return nil
	}
	if err != nil {
		c.warn(column, v, err)
		return nil
	}
	return &f
}

func identifier(v Value) *string {
	s, ok := v.Identifier()
	if !ok {
		return nil
	}
	return &s
}

// text normalises missing markers to NULL.
func text(s string) *string {
	s = strings.TrimSpace(s)
	if missingMarkers[s] {
		return nil
	}
	return &s
}

// coverURLs reads {small, large} from a cover object; any other shape yields NULLs.
func coverURLs(raw json.RawMessage) (small, large *string) {
	var cover map[string]json.RawMessage
	if !isObject(raw) || json.Unmarshal(raw, &cover) != nil {
		return nil, nil
	}
	return textValue(cover["small"]), textValue(cover["large"])
}

type storeLink struct {
	name string
	url  string
}

type storeLinks []storeLink

// buyLinks keeps well-formed {name, url} entries in order; malformed entries are dropped.
func buyLinks(raw json.RawMessage) storeLinks {
	var entries []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	var out storeLinks
	for _, e := range entries {
		var link struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if json.Unmarshal(e, &link) != nil {
			continue
		}
		out = append(out, storeLink{name: link.Name, url: link.URL})
	}
	return out
}

// find returns the first link whose name matches exactly.
func (l storeLinks) find(store string) *string {
	for _, link := range l {
		if link.name == store {
			return text(link.url)
		}
	}
	return nil
}

// joinNames flattens [{name}, ...] into "a, b". Anything but a list is NULL.
func joinNames(raw json.RawMessage) *string {
	var entries []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		var p openlibrary.Publisher
		if json.Unmarshal(e, &p) != nil {
			continue
		}
		names = append(names, p.Name)
	}
	return text(strings.Join(names, ", "))
}

func textValue(raw json.RawMessage) *string {
	s, ok := Value(raw).Text()
	if !ok {
		return nil
	}
	return &s
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
