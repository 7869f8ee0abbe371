package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/crawler"
	"github.com/nmoreyra/catalogpulse/internal/offer"
	"github.com/nmoreyra/catalogpulse/internal/storage/postgres"
)

const catalogURL = "https://www.mercadolibre.com.ar/lampara-led-9w/p/MLA19727273"

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time   { return c.at }
func (c fixedClock) Today() time.Time { return c.at.Truncate(24 * time.Hour) }

var clk = fixedClock{at: time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)}

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Crawl(ctx context.Context, rawURL string) crawler.Result {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(crawler.Result)
}

type mockRawStore struct {
	mock.Mock
}

func (m *mockRawStore) Exists(ctx context.Context, catalogID string, day time.Time) (bool, error) {
	args := m.Called(ctx, catalogID, day)
	return args.Bool(0), args.Error(1)
}

func (m *mockRawStore) InsertBatch(ctx context.Context, rows []offer.RawOffer) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func crawlResult(offers ...offer.RawOffer) crawler.Result {
	return crawler.Result{
		SessionID: "session-1",
		Offers:    offers,
		Meta: crawler.ProductMeta{
			Name:              "Lampara Led 9w",
			CategoryPrimary:   "Hogar",
			CategorySecondary: "Iluminacion",
		},
		Pages:  2,
		Parsed: len(offers),
	}
}

func TestProcessStoresEnrichedRows(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	storeMock.On("Exists", mock.Anything, "MLA19727273", clk.Today()).
		Return(false, nil).Once()
	crawlerMock.On("Crawl", mock.Anything, catalogURL).
		Return(crawlResult(
			offer.RawOffer{OfferID: "MLA001", Price: 100, SellerName: "A"},
			offer.RawOffer{OfferID: "MLA002", Price: 90, SellerName: "B"},
		)).Once()

	var stored []offer.RawOffer
	storeMock.On("InsertBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).([]offer.RawOffer)
		}).
		Return(nil).Once()

	summary, err := ing.Process(context.Background(), catalogURL)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Stored)
	require.Equal(t, "MLA19727273", summary.CatalogID)
	require.False(t, summary.AlreadyIngested)

	require.Len(t, stored, 2)
	for _, row := range stored {
		require.Equal(t, "MLA19727273", row.CatalogID)
		require.Equal(t, clk.Today(), row.ExtractionDate)
		require.Equal(t, "Lampara Led 9w", row.ProductName)
		require.Equal(t, "Hogar", row.CategoryPrimary)
		require.Equal(t, "Iluminacion", row.CategorySecondary)
	}

	crawlerMock.AssertExpectations(t)
	storeMock.AssertExpectations(t)
}

func TestProcessSkipsWhenAlreadyIngested(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	storeMock.On("Exists", mock.Anything, "MLA19727273", clk.Today()).
		Return(true, nil).Once()

	summary, err := ing.Process(context.Background(), catalogURL)
	require.NoError(t, err)
	require.True(t, summary.AlreadyIngested)
	require.Zero(t, summary.Stored)

	// The crawl never ran: no browser traffic when today's rows exist.
	crawlerMock.AssertNotCalled(t, "Crawl", mock.Anything, mock.Anything)
	storeMock.AssertExpectations(t)
}

func TestProcessRejectsURLWithoutCatalogID(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	_, err := ing.Process(context.Background(), "https://www.mercadolibre.com.ar/ofertas")
	require.ErrorIs(t, err, ErrUnrecognizedURL)

	crawlerMock.AssertNotCalled(t, "Crawl", mock.Anything, mock.Anything)
	storeMock.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessLosingInsertRaceIsASkip(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	storeMock.On("Exists", mock.Anything, "MLA19727273", clk.Today()).
		Return(false, nil).Once()
	crawlerMock.On("Crawl", mock.Anything, catalogURL).
		Return(crawlResult(offer.RawOffer{OfferID: "MLA001", Price: 100})).Once()
	storeMock.On("InsertBatch", mock.Anything, mock.Anything).
		Return(postgres.ErrDuplicateOffer).Once()

	summary, err := ing.Process(context.Background(), catalogURL)
	require.NoError(t, err)
	require.True(t, summary.AlreadyIngested)
	require.Zero(t, summary.Stored)
}

func TestProcessInsertFailurePropagates(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	storeMock.On("Exists", mock.Anything, "MLA19727273", clk.Today()).
		Return(false, nil).Once()
	crawlerMock.On("Crawl", mock.Anything, catalogURL).
		Return(crawlResult(offer.RawOffer{OfferID: "MLA001", Price: 100})).Once()
	storeMock.On("InsertBatch", mock.Anything, mock.Anything).
		Return(errors.New("connection refused")).Once()

	_, err := ing.Process(context.Background(), catalogURL)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnrecognizedURL)
}

func TestProcessEmptyCrawlStoresNothing(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	storeMock.On("Exists", mock.Anything, "MLA19727273", clk.Today()).
		Return(false, nil).Once()
	crawlerMock.On("Crawl", mock.Anything, catalogURL).
		Return(crawler.Result{SessionID: "session-1", TimedOut: true}).Once()

	summary, err := ing.Process(context.Background(), catalogURL)
	require.NoError(t, err)
	require.Zero(t, summary.Stored)
	require.True(t, summary.TimedOut)

	storeMock.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestProcessExistsFailurePropagates(t *testing.T) {
	t.Parallel()

	crawlerMock := &mockCrawler{}
	storeMock := &mockRawStore{}
	ing := New(crawlerMock, storeMock, clk, zap.NewNop())

	storeMock.On("Exists", mock.Anything, "MLA19727273", clk.Today()).
		Return(false, errors.New("timeout")).Once()

	_, err := ing.Process(context.Background(), catalogURL)
	require.Error(t, err)
	crawlerMock.AssertNotCalled(t, "Crawl", mock.Anything, mock.Anything)
}
