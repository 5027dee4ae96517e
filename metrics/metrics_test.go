package metrics

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sljivkov/feedsync/domain"
)

func TestRecord(t *testing.T) {
	m := New()
	ethUSD := domain.TradingPair{Description: "ETH / USD"}
	ckbUSD := domain.TradingPair{Description: "CKB / USD"}

	m.Record([]domain.SyncOutcome{
		domain.Updated(ethUSD, big.NewInt(1), big.NewInt(300000000000)),
		domain.Provisioned(ckbUSD, common.HexToAddress("0x01"), big.NewInt(410000)),
		domain.Skipped(ckbUSD, domain.ReasonUpToDate, nil),
	}, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("ETH / USD", "updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("CKB / USD", "provisioned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("CKB / USD", "skipped")))
	assert.Equal(t, 300000000000.0, testutil.ToFloat64(m.lastAnswer.WithLabelValues("ETH / USD")))
	assert.Equal(t, 410000.0, testutil.ToFloat64(m.lastAnswer.WithLabelValues("CKB / USD")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestObserveTransaction(t *testing.T) {
	m := New()
	m.ObserveTransaction("proposeFeed", nil)
	m.ObserveTransaction("proposeFeed", errors.New("boom"))
	m.ObserveTransaction("proposeFeed", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactions.WithLabelValues("proposeFeed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("proposeFeed", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveTransaction("deploy", nil)
		m.Record(nil, time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveTransaction("updateAnswer", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `feedsync_transactions_total{kind="updateAnswer",status="success"} 1`)
}

func TestPush(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := New()
	require.NoError(t, m.Push(context.Background(), server.URL))
	assert.True(t, strings.HasSuffix(gotPath, "/job/"+JobName), gotPath)
}
