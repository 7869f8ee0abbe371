package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Recording against initialized collectors must not panic.
	PageFetched("ok")
	PageFetched("timeout")
	OfferParsed("parsed")
	OfferParsed("skipped")
	ObserveCrawlDuration(3 * time.Second)
	RawRowsInserted(12)
	IngestSkipped("already_ingested")
	KPIRowsUpserted(2)
	ObservePaceDelay(250 * time.Millisecond)
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	Init()
	PageFetched("ok")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}
