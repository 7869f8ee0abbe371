package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/browser"
)

// MockSession is a mock implementation of the PageSource interface.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) FetchState(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSession) Close() {
	m.Called()
}

// MockSnapshots is a mock implementation of the SnapshotSink interface.
type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) SavePageState(catalogID string, page int, data []byte) error {
	args := m.Called(catalogID, page, data)
	return args.Error(0)
}

const testCatalogURL = "https://www.mercadolibre.com.ar/foco-led/p/MLA19000001"

func productPageState() []byte {
	return []byte(`{
		"pageState": {"initialState": {
			"components": {"header": {"title": "Foco LED 9W"}},
			"analytics_event": {"pathFromRoot": [{"name": "Hogar"}, {"name": "Iluminación"}]}
		}}
	}`)
}

func listingPageState(offerIDs ...string) []byte {
	items := ""
	trackItems := ""
	for i, id := range offerIDs {
		if i > 0 {
			items += ","
			trackItems += ","
		}
		items += fmt.Sprintf(`{
			"id": %q,
			"components": [{"id": "price", "price": {"value": %d}}]
		}`, id, 100+i)
		trackItems += fmt.Sprintf(`{"item_id": %q, "has_full_filment": true}`, id)
	}
	return []byte(fmt.Sprintf(`{
		"pageState": {"initialState": {"components": {
			"results": {"items": [%s]},
			"track": {"melidata_event": {"event_data": {"items": [%s]}}}
		}}}
	}`, items, trackItems))
}

func emptyPageState() []byte {
	return []byte(`{"pageState": {"initialState": {"components": {"results": {"items": []}}}}}`)
}

func newTestCrawler(session PageSource) *Crawler {
	factory := func() (PageSource, error) { return session, nil }
	return New(factory, ZeroDelayPacer{}, nil, zap.NewNop())
}

func pageURL(n int) string {
	return fmt.Sprintf("%s/s?page=%d", testCatalogURL, n)
}

func TestCrawlPaginatesUntilEmptyPage(t *testing.T) {
	t.Parallel()

	session := new(MockSession)
	session.On("FetchState", mock.Anything, testCatalogURL).Return(productPageState(), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(1)).Return(listingPageState("MLA1", "MLA2"), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(2)).Return(listingPageState("MLA3"), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(3)).Return(listingPageState("MLA4"), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(4)).Return(emptyPageState(), nil).Once()
	session.On("Close").Return().Once()

	result := newTestCrawler(session).Crawl(context.Background(), testCatalogURL)

	require.Len(t, result.Offers, 4)
	require.Equal(t, []string{"MLA1", "MLA2", "MLA3", "MLA4"}, offerIDs(result))
	require.Equal(t, 3, result.Pages)
	require.False(t, result.TimedOut)
	require.Equal(t, "Foco LED 9W", result.Meta.Name)
	require.Equal(t, "Hogar", result.Meta.CategoryPrimary)
	require.Equal(t, "Iluminación", result.Meta.CategorySecondary)

	// No page-5 request: every expected call was consumed exactly once.
	session.AssertExpectations(t)
}

func TestCrawlTimeoutEndsPaginationWithPartialResults(t *testing.T) {
	t.Parallel()

	session := new(MockSession)
	session.On("FetchState", mock.Anything, testCatalogURL).Return(productPageState(), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(1)).Return(listingPageState("MLA1"), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(2)).
		Return(nil, fmt.Errorf("%w: page 2", browser.ErrNavigationTimeout)).Once()
	session.On("Close").Return().Once()

	result := newTestCrawler(session).Crawl(context.Background(), testCatalogURL)

	require.Len(t, result.Offers, 1)
	require.Equal(t, 1, result.Pages)
	require.True(t, result.TimedOut)
	session.AssertExpectations(t)
}

func TestCrawlMetadataFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	session := new(MockSession)
	session.On("FetchState", mock.Anything, testCatalogURL).
		Return(nil, errors.New("blocked")).Once()
	session.On("FetchState", mock.Anything, pageURL(1)).Return(listingPageState("MLA1"), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(2)).Return(emptyPageState(), nil).Once()
	session.On("Close").Return().Once()

	result := newTestCrawler(session).Crawl(context.Background(), testCatalogURL)

	require.Len(t, result.Offers, 1)
	require.Empty(t, result.Meta.Name)
	session.AssertExpectations(t)
}

func TestCrawlSessionLaunchFailureReturnsEmptyResult(t *testing.T) {
	t.Parallel()

	factory := func() (PageSource, error) { return nil, errors.New("no chrome binary") }
	c := New(factory, ZeroDelayPacer{}, nil, zap.NewNop())

	result := c.Crawl(context.Background(), testCatalogURL)
	require.Empty(t, result.Offers)
	require.Zero(t, result.Pages)
}

func TestCrawlCountsSkippedFragments(t *testing.T) {
	t.Parallel()

	// MLA2 has no price component and must be skipped, not fatal.
	page := []byte(`{
		"pageState": {"initialState": {"components": {
			"results": {"items": [
				{"id": "MLA1", "components": [{"id": "price", "price": {"value": 50}}]},
				{"id": "MLA2", "components": []}
			]}
		}}}
	}`)

	session := new(MockSession)
	session.On("FetchState", mock.Anything, testCatalogURL).Return(productPageState(), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(1)).Return(page, nil).Once()
	session.On("FetchState", mock.Anything, pageURL(2)).Return(emptyPageState(), nil).Once()
	session.On("Close").Return().Once()

	result := newTestCrawler(session).Crawl(context.Background(), testCatalogURL)

	require.Equal(t, 1, result.Parsed)
	require.Equal(t, 1, result.Skipped)
	require.Len(t, result.Offers, 1)
	session.AssertExpectations(t)
}

func TestCrawlArchivesPageState(t *testing.T) {
	t.Parallel()

	session := new(MockSession)
	session.On("FetchState", mock.Anything, testCatalogURL).Return(productPageState(), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(1)).Return(listingPageState("MLA1"), nil).Once()
	session.On("FetchState", mock.Anything, pageURL(2)).Return(emptyPageState(), nil).Once()
	session.On("Close").Return().Once()

	snapshots := new(MockSnapshots)
	snapshots.On("SavePageState", "MLA19000001", 1, mock.Anything).Return(nil).Once()
	snapshots.On("SavePageState", "MLA19000001", 2, mock.Anything).Return(nil).Once()

	factory := func() (PageSource, error) { return session, nil }
	c := New(factory, ZeroDelayPacer{}, snapshots, zap.NewNop())

	result := c.Crawl(context.Background(), testCatalogURL)
	require.Len(t, result.Offers, 1)
	snapshots.AssertExpectations(t)
}

func offerIDs(result Result) []string {
	ids := make([]string, 0, len(result.Offers))
	for _, o := range result.Offers {
		ids = append(ids, o.OfferID)
	}
	return ids
}
