package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bestsellers/internal/bestseller"

	"cloud.google.com/go/civil"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteParquet(t *testing.T) {
	dir := t.TempDir()
	ingestedAt := time.Date(2024, 5, 27, 9, 0, 0, 0, time.UTC)
	isbn := "9780593321201"
	date := civil.Date{Year: 2024, Month: time.May, Day: 26}
	rank := int64(1)
	weight := 1.4

	table := bestseller.BookTable{
		Columns: bestseller.Columns,
		Rows: []bestseller.BookRecord{
			{PrimaryISBN13: &isbn, ListPublishedDate: &date, Rank: &rank, Weight: &weight, IngestedAt: ingestedAt},
			{IngestedAt: ingestedAt},
		},
	}

	path, err := WriteParquet(context.Background(), dir, table)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "books-20240527T090000Z.parquet"), path)

	rows, err := parquet.ReadFile[BookRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, isbn, *rows[0].PrimaryISBN13)
	assert.Equal(t, int32(19869), rows[0].ListPublishedDate)
	assert.Equal(t, rank, *rows[0].Rank)
	assert.True(t, ingestedAt.Equal(rows[0].IngestedAt))

	assert.Nil(t, rows[1].PrimaryISBN13)
	assert.Zero(t, rows[1].ListPublishedDate)
	assert.Nil(t, rows[1].Weight)
}

func TestReadParquet_RoundTrip(t *testing.T) {
	ingestedAt := time.Date(2024, 5, 27, 9, 0, 0, 0, time.UTC)
	isbn := "9780593321201"
	date := civil.Date{Year: 2024, Month: time.May, Day: 26}
	pages := int64(416)
	in := bestseller.BookTable{
		Columns: bestseller.Columns,
		Rows: []bestseller.BookRecord{
			{PrimaryISBN13: &isbn, ListPublishedDate: &date, NumberOfPages: &pages, IngestedAt: ingestedAt},
		},
	}

	path, err := WriteParquet(context.Background(), t.TempDir(), in)
	require.NoError(t, err)

	out, err := ReadParquet(path)
	require.NoError(t, err)

	assert.Equal(t, bestseller.Columns, out.Columns)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, date, *out.Rows[0].ListPublishedDate)
	assert.Equal(t, pages, *out.Rows[0].NumberOfPages)
	assert.Nil(t, out.Rows[0].Weight)
	assert.True(t, ingestedAt.Equal(out.Rows[0].IngestedAt))
}

func TestReadParquet_MissingFile(t *testing.T) {
	_, err := ReadParquet(filepath.Join(t.TempDir(), "nope.parquet"))
	assert.Error(t, err)
}

func TestWriteParquet_EmptyTable(t *testing.T) {
	path, err := WriteParquet(context.Background(), t.TempDir(), bestseller.BookTable{})

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBookRow_ColumnsMatchTable(t *testing.T) {
	schema := parquet.SchemaOf(BookRow{})
	var names []string
	for _, f := range schema.Fields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, bestseller.Columns, names)
}
