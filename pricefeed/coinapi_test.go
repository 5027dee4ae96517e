package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sljivkov/feedsync/apis"
	"github.com/sljivkov/feedsync/domain"
)

func TestProvisionsFromCoinAPIRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/CKB/USD", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"asset_id_base":"CKB","asset_id_quote":"USD","rate":0.0041}`))
	}))
	defer server.Close()

	client := apis.NewCoinAPI(apis.CoinAPIConfig{
		URL:     server.URL,
		Key:     "test-key",
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
	})

	chain := newFakeChain()
	ckbUSD := pair(t, "CKB", "USD")

	sync := New(chain, chain, []Feed{{
		Pair:     ckbUSD,
		Decimals: 8,
		Source:   client.Source("CKB", "USD", 8),
	}})

	report := sync.Run(context.Background())
	require.Len(t, report.Outcomes, 1)

	o := report.Outcomes[0]
	require.Equal(t, domain.OutcomeProvisioned, o.Kind, "error: %v", o.Err)
	require.NotNil(t, o.New)
	assert.Equal(t, "410000", o.New.String())
	assert.Equal(t, 1, chain.deploys)

	latest, err := chain.LatestPrice(context.Background(), ckbUSD)
	require.NoError(t, err)
	assert.Equal(t, "410000", latest.Value.String())
	assert.Equal(t, uint8(8), latest.Decimals)

	// a second pass with the same rate writes nothing
	second := sync.Run(context.Background())
	assert.Equal(t, domain.OutcomeSkipped, second.Outcomes[0].Kind)
	assert.Equal(t, 1, chain.deploys)
}
