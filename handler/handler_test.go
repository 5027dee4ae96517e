package handler

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sljivkov/feedsync/domain"
	"github.com/sljivkov/feedsync/metrics"
	"github.com/sljivkov/feedsync/pricefeed"
)

func sampleReport() pricefeed.Report {
	eth := domain.TradingPair{Description: "ETH / USD"}
	ckb := domain.TradingPair{Description: "CKB / USD"}
	dai := domain.TradingPair{Description: "DAI / ETH"}

	return pricefeed.Report{
		RunID:    uuid.New(),
		Started:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration: 2 * time.Second,
		Outcomes: []domain.SyncOutcome{
			domain.Updated(eth, big.NewInt(300000000000), big.NewInt(310000000000)),
			domain.Provisioned(ckb, common.HexToAddress("0x0B3187A38d37704A7c775825A247E666D686a8A7"), big.NewInt(410000)),
			domain.Failed(dai, errors.New("boom")),
		},
	}
}

func TestReportNotReady(t *testing.T) {
	reports := NewReports(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	reports.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, ok := reports.Last()
	assert.False(t, ok)
}

func TestReportServed(t *testing.T) {
	reports := NewReports(time.Second)
	report := sampleReport()
	reports.Store(report)

	last, ok := reports.Last()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)

	rec := httptest.NewRecorder()
	reports.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var view pricefeed.ReportView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))

	assert.Equal(t, report.RunID.String(), view.RunID)
	assert.Equal(t, 1, view.Counts["updated"])
	assert.Equal(t, 1, view.Counts["provisioned"])
	assert.Equal(t, 1, view.Counts["failed"])
	assert.Equal(t, 0, view.Counts["skipped"])

	require.Len(t, view.Outcomes, 3)
	assert.Equal(t, "310000000000", view.Outcomes[0].New)
	assert.Equal(t, "0x0B3187A38d37704A7c775825A247E666D686a8A7", view.Outcomes[1].Address)
	assert.Equal(t, "boom", view.Outcomes[2].Error)
}

func TestStoreTwice(t *testing.T) {
	reports := NewReports(time.Second)
	reports.Store(sampleReport())

	second := sampleReport()
	assert.NotPanics(t, func() { reports.Store(second) })

	last, _ := reports.Last()
	assert.Equal(t, second.RunID, last.RunID)
}

func TestMux(t *testing.T) {
	m := metrics.New()
	m.ObserveTransaction("updateAnswer", nil)

	reports := NewReports(time.Second)
	reports.Store(sampleReport())

	server := httptest.NewServer(NewMux(reports, m.Handler()))
	defer server.Close()

	for path, want := range map[string]int{
		"/report":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/healthz": http.StatusOK,
		"/prices":  http.StatusNotFound,
	} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, want, resp.StatusCode, path)
	}
}
