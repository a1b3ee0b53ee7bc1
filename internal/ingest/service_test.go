package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"bestsellers/internal/bestseller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context) (bestseller.EnrichedTable, error) {
	args := m.Called(ctx)
	return args.Get(0).(bestseller.EnrichedTable), args.Error(1)
}

type mockTransformer struct{ mock.Mock }

func (m *mockTransformer) Transform(ctx context.Context, in bestseller.EnrichedTable) (bestseller.BookTable, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(bestseller.BookTable), args.Error(1)
}

type mockValidator struct{ mock.Mock }

func (m *mockValidator) Validate(ctx context.Context, table bestseller.BookTable) bestseller.ValidationReport {
	args := m.Called(ctx, table)
	return args.Get(0).(bestseller.ValidationReport)
}

type mockLoader struct{ mock.Mock }

func (m *mockLoader) InsertBooks(ctx context.Context, rows []bestseller.BookRecord) (int64, error) {
	args := m.Called(ctx, rows)
	return args.Get(0).(int64), args.Error(1)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockIngestRepo struct{ mock.Mock }

func (m *mockIngestRepo) CreateRun(ctx context.Context, run *Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockIngestRepo) UpdateRun(ctx context.Context, run *Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockIngestRepo) LastRun(ctx context.Context) (*Run, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Run), args.Error(1)
}

type fixture struct {
	fetcher     *mockFetcher
	transformer *mockTransformer
	validator   *mockValidator
	loader      *mockLoader
	auditor     *mockAuditor
	runs        *mockIngestRepo
	enriched    bestseller.EnrichedTable
	table       bestseller.BookTable
}

func newFixture() *fixture {
	rank := int64(1)
	return &fixture{
		fetcher:     new(mockFetcher),
		transformer: new(mockTransformer),
		validator:   new(mockValidator),
		loader:      new(mockLoader),
		auditor:     new(mockAuditor),
		runs:        new(mockIngestRepo),
		enriched: bestseller.EnrichedTable{
			ListName:          "Hardcover Fiction",
			ListPublishedDate: "2024-05-26",
			Listed:            3,
			Rows:              []bestseller.EnrichedRecord{{Title: "A"}, {Title: "B"}},
			Skipped:           []bestseller.SkippedItem{{Position: 2, ISBN13: "9780385550369"}},
		},
		table: bestseller.BookTable{
			Columns:  bestseller.Columns,
			Rows:     []bestseller.BookRecord{{Rank: &rank}, {}},
			Warnings: []bestseller.CoercionWarning{{Row: 1, Column: "rank"}},
		},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Fetcher:     f.fetcher,
		Transformer: f.transformer,
		Validator:   f.validator,
		Loader:      f.loader,
		Auditor:     f.auditor,
		Runs:        f.runs,
	}
}

func withStatus(status string) interface{} {
	return mock.MatchedBy(func(r *Run) bool { return r.Status == status && r.FinishedAt != nil })
}

var cleanReport = bestseller.ValidationReport{RowCount: 2, ColumnCount: 18}

var dirtyReport = bestseller.ValidationReport{
	RowCount:    2,
	ColumnCount: 18,
	Violations:  []bestseller.Violation{{Row: 1, Column: "rank", Rule: "required", Message: "rank is missing"}},
}

func TestService_Run_Success(t *testing.T) {
	f := newFixture()
	f.runs.On("CreateRun", mock.Anything, mock.AnythingOfType("*ingest.Run")).Return(nil).Once()
	f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil).Once()
	f.transformer.On("Transform", mock.Anything, f.enriched).Return(f.table, nil).Once()
	f.validator.On("Validate", mock.Anything, f.table).Return(cleanReport).Once()
	f.loader.On("InsertBooks", mock.Anything, f.table.Rows).Return(int64(2), nil).Once()
	f.auditor.On("Refresh", mock.Anything).Return(nil).Once()
	f.runs.On("UpdateRun", mock.Anything, withStatus(StatusCompleted)).Return(nil).Once()

	run, err := NewService(f.deps(), Config{}).Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "Hardcover Fiction", run.ListName)
	assert.Equal(t, 3, run.BooksListed)
	assert.Equal(t, 2, run.BooksEnriched)
	assert.Equal(t, 1, run.BooksSkipped)
	assert.Equal(t, int64(2), run.BooksLoaded)
	assert.Equal(t, 1, run.Warnings)
	assert.Empty(t, run.Error)

	for _, m := range []*mock.Mock{&f.fetcher.Mock, &f.transformer.Mock, &f.validator.Mock, &f.loader.Mock, &f.auditor.Mock, &f.runs.Mock} {
		m.AssertExpectations(t)
	}
}

func TestService_Run_FetchFailure(t *testing.T) {
	f := newFixture()
	fetchErr := errors.New("fetch bestseller list: exhausted")
	f.runs.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	f.fetcher.On("Fetch", mock.Anything).Return(bestseller.EnrichedTable{}, fetchErr)
	f.runs.On("UpdateRun", mock.Anything, withStatus(StatusFailed)).Return(nil).Once()

	run, err := NewService(f.deps(), Config{}).Run(context.Background())

	require.ErrorIs(t, err, fetchErr)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, fetchErr.Error(), run.Error)
	f.transformer.AssertNotCalled(t, "Transform", mock.Anything, mock.Anything)
	f.loader.AssertNotCalled(t, "InsertBooks", mock.Anything, mock.Anything)
	f.runs.AssertExpectations(t)
}

func TestService_Run_ValidationGate(t *testing.T) {
	t.Run("gate on blocks the load", func(t *testing.T) {
		f := newFixture()
		f.runs.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
		f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil)
		f.transformer.On("Transform", mock.Anything, f.enriched).Return(f.table, nil)
		f.validator.On("Validate", mock.Anything, f.table).Return(dirtyReport)
		f.runs.On("UpdateRun", mock.Anything, withStatus(StatusFailed)).Return(nil).Once()

		run, err := NewService(f.deps(), Config{Gate: true}).Run(context.Background())

		require.ErrorIs(t, err, ErrValidationFailed)
		assert.Equal(t, 1, run.Violations)
		f.loader.AssertNotCalled(t, "InsertBooks", mock.Anything, mock.Anything)
		f.auditor.AssertNotCalled(t, "Refresh", mock.Anything)
	})

	t.Run("gate off loads anyway", func(t *testing.T) {
		f := newFixture()
		f.runs.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
		f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil)
		f.transformer.On("Transform", mock.Anything, f.enriched).Return(f.table, nil)
		f.validator.On("Validate", mock.Anything, f.table).Return(dirtyReport)
		f.loader.On("InsertBooks", mock.Anything, f.table.Rows).Return(int64(2), nil).Once()
		f.auditor.On("Refresh", mock.Anything).Return(nil).Once()
		f.runs.On("UpdateRun", mock.Anything, withStatus(StatusCompleted)).Return(nil).Once()

		run, err := NewService(f.deps(), Config{}).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, run.Violations)
		f.loader.AssertExpectations(t)
	})
}

func TestService_Run_StrictCoercionFails(t *testing.T) {
	f := newFixture()
	f.runs.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil)
	f.transformer.On("Transform", mock.Anything, f.enriched).Return(bestseller.BookTable{}, bestseller.ErrCoercion)
	f.runs.On("UpdateRun", mock.Anything, withStatus(StatusFailed)).Return(nil).Once()

	_, err := NewService(f.deps(), Config{}).Run(context.Background())

	require.ErrorIs(t, err, bestseller.ErrCoercion)
	f.validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestService_Run_LoadFailure(t *testing.T) {
	f := newFixture()
	f.runs.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil)
	f.transformer.On("Transform", mock.Anything, f.enriched).Return(f.table, nil)
	f.validator.On("Validate", mock.Anything, f.table).Return(cleanReport)
	f.loader.On("InsertBooks", mock.Anything, f.table.Rows).Return(int64(0), errors.New("copy books: conn closed"))
	f.runs.On("UpdateRun", mock.Anything, withStatus(StatusFailed)).Return(nil).Once()

	run, err := NewService(f.deps(), Config{}).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, run.Error, "load books")
	f.auditor.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestService_Run_DryRun(t *testing.T) {
	f := newFixture()
	f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil)
	f.transformer.On("Transform", mock.Anything, f.enriched).Return(f.table, nil)
	f.validator.On("Validate", mock.Anything, f.table).Return(cleanReport)

	run, err := NewService(f.deps(), Config{DryRun: true}).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, StatusCompleted, run.Status)
	f.runs.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything)
	f.runs.AssertNotCalled(t, "UpdateRun", mock.Anything, mock.Anything)
	f.loader.AssertNotCalled(t, "InsertBooks", mock.Anything, mock.Anything)
}

func TestService_Run_Export(t *testing.T) {
	f := newFixture()
	f.runs.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	f.fetcher.On("Fetch", mock.Anything).Return(f.enriched, nil)
	f.transformer.On("Transform", mock.Anything, f.enriched).Return(f.table, nil)
	f.validator.On("Validate", mock.Anything, f.table).Return(cleanReport)
	f.loader.On("InsertBooks", mock.Anything, f.table.Rows).Return(int64(2), nil)
	f.auditor.On("Refresh", mock.Anything).Return(nil)
	f.runs.On("UpdateRun", mock.Anything, withStatus(StatusCompleted)).Return(nil)

	t.Run("writes a snapshot", func(t *testing.T) {
		var gotDir string
		deps := f.deps()
		deps.Export = func(_ context.Context, dir string, table bestseller.BookTable) (string, error) {
			gotDir = dir
			return dir + "/books.parquet", nil
		}

		run, err := NewService(deps, Config{ExportDir: "/tmp/out"}).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "/tmp/out", gotDir)
		assert.Equal(t, "/tmp/out/books.parquet", run.ExportPath)
	})

	t.Run("export failure does not fail the run", func(t *testing.T) {
		deps := f.deps()
		deps.Export = func(context.Context, string, bestseller.BookTable) (string, error) {
			return "", errors.New("disk full")
		}

		run, err := NewService(deps, Config{ExportDir: "/tmp/out"}).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		assert.Empty(t, run.ExportPath)
	})
}

func TestService_Run_InProgress(t *testing.T) {
	f := newFixture()
	svc := NewService(f.deps(), Config{})
	svc.mu.Lock()
	defer svc.mu.Unlock()

	run, err := svc.Run(context.Background())

	assert.Nil(t, run)
	assert.ErrorIs(t, err, ErrRunInProgress)
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestService_Run_UsesInjectedClock(t *testing.T) {
	f := newFixture()
	f.fetcher.On("Fetch", mock.Anything).Return(bestseller.EnrichedTable{}, nil)
	f.transformer.On("Transform", mock.Anything, mock.Anything).Return(bestseller.BookTable{Columns: bestseller.Columns}, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return(bestseller.ValidationReport{})

	svc := NewService(f.deps(), Config{DryRun: true})
	start := time.Date(2024, 5, 27, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	run, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, start, run.StartedAt)
	assert.Equal(t, start, *run.FinishedAt)
}
