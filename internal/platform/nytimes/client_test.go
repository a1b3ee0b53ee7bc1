package nytimes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bestsellers/internal/platform/fetch"
	"bestsellers/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCurrentList(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testutil.ListJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/svc/books/v3/lists/current/hardcover-fiction.json", "test-key", "test-agent", 100)
	res, err := c.GetCurrentList(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "2024-05-26", res.Results.PreviousPublishedDate)
	require.Len(t, res.Results.Books, 3)

	first := res.Results.Books[0]
	assert.Equal(t, `"9780593321201"`, string(first.PrimaryISBN13))
	assert.Equal(t, "TOMORROW, AND TOMORROW, AND TOMORROW", first.Title)
	assert.Equal(t, `1`, string(first.Rank))
	assert.NotEmpty(t, first.BuyLinks)
}

func TestGetCurrentList_MissingResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","num_results":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", 100)
	_, err := c.GetCurrentList(context.Background())

	assert.ErrorIs(t, err, fetch.ErrMalformedResponse)
	assert.True(t, fetch.IsPermanent(err))
}

func TestGetCurrentList_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", 100)
	res, err := c.GetCurrentList(context.Background())

	assert.Nil(t, res)
	assert.ErrorIs(t, err, fetch.ErrFetchFailed)
	assert.False(t, fetch.IsPermanent(err))
}
