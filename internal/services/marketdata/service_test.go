package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobu711/optionalpha/internal/eodhd"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/jobu711/optionalpha/internal/services/ratelimit"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

var testNow = time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestService(t *testing.T, handler http.HandlerFunc, opts ...Option) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := arbor.NewLogger()
	client := eodhd.NewClient("test-key", eodhd.WithBaseURL(server.URL), eodhd.WithRateLimit(1000))
	limiter := ratelimit.NewLimiter(5, 1000, logger, ratelimit.WithSleep(noSleep))

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(client, limiter, logger, opts...)
}

func barsJSON(n int) string {
	start := testNow.AddDate(0, 0, -n)
	rows := make([]string, n)
	for i := range rows {
		c := 100 + 0.5*float64(i)
		rows[i] = fmt.Sprintf(`{"date":%q,"open":%.2f,"high":%.2f,"low":%.2f,"close":%.2f,"volume":%d}`,
			start.AddDate(0, 0, i).Format("2006-01-02"), c, c+1, c-1, c, 1_000_000+i)
	}
	return "[" + strings.Join(rows, ",") + "]"
}

func TestPriceHistory(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/AAPL.US", r.URL.Path)
		assert.Equal(t, testNow.AddDate(0, 0, -30).Format("2006-01-02"), r.URL.Query().Get("from"))
		_, _ = w.Write([]byte(barsJSON(20)))
	})

	bars, err := svc.PriceHistory(context.Background(), "aapl", 30)
	require.NoError(t, err)
	assert.Len(t, bars, 20)
	assert.Equal(t, 100.0, bars[0].Close)
}

func TestPriceHistory_NotFoundIsNotRetried(t *testing.T) {
	var hits int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := svc.PriceHistory(context.Background(), "ZZZZ", 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTickerNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	var dfe *models.DataFetchError
	require.True(t, errors.As(err, &dfe))
	assert.Equal(t, http.StatusNotFound, dfe.HTTPStatus)
	assert.Equal(t, gobreaker.StateClosed, svc.BreakerState(), "not found does not count against the breaker")
}

func TestPriceHistory_EmptyIsInsufficient(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := svc.PriceHistory(context.Background(), "AAPL", 30)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestPriceHistory_ServerErrorsExhaustRetries(t *testing.T) {
	var hits int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.PriceHistory(context.Background(), "AAPL", 30)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataSourceUnavailable))
	assert.Equal(t, int32(ratelimit.FetchAttempts), atomic.LoadInt32(&hits))
}

func TestCircuitBreakerOpens(t *testing.T) {
	var hits int32
	var transitions []gobreaker.State
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	},
		WithBreaker(2, time.Hour),
		WithBreakerObserver(func(_ string, _, to gobreaker.State) { transitions = append(transitions, to) }),
	)

	_, err := svc.PriceHistory(context.Background(), "AAPL", 30)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "third attempt is refused by the open breaker")
	assert.Equal(t, gobreaker.StateOpen, svc.BreakerState())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err = svc.OptionChain(context.Background(), "MSFT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataSourceUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestOptionChain_DropsInvalidContracts(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"AAPL","data":[{"expirationDate":"2025-02-24","options":{"CALL":[
			{"type":"CALL","strike":190,"bid":2,"ask":2.2,"volume":10,"openInterest":500,"impliedVolatility":25,
				"delta":0.35,"gamma":0.02,"theta":-0.05,"vega":0.2,"rho":0.01},
			{"type":"CALL","strike":195,"bid":1,"ask":1.2,"volume":10,"openInterest":500,"impliedVolatility":25,
				"delta":1.5,"gamma":0.02,"theta":-0.05,"vega":0.2,"rho":0.01}
		]}}]}`))
	})

	chain, err := svc.OptionChain(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, 190.0, chain[0].Strike)
	assert.Equal(t, "AAPL", chain[0].Ticker)
}

func TestQuote_RetriesRateLimit(t *testing.T) {
	var hits int32
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"code":"AAPL.US","timestamp":1736517600,"close":236.85,"volume":100}`))
	})

	q, err := svc.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 236.85, q.Last)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestNextEarnings(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL.US", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"earnings":[{"code":"AAPL.US","report_date":"2025-01-30"}]}`))
	})

	next, err := svc.NextEarnings(context.Background(), "AAPL", testNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 20, models.DaysBetween(testNow, *next))
}

func TestBuildMarketContext(t *testing.T) {
	expiry := testNow.AddDate(0, 0, 45).Format("2006-01-02")
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/eod/"):
			_, _ = w.Write([]byte(barsJSON(260)))
		case strings.HasPrefix(r.URL.Path, "/options/"):
			_, _ = fmt.Fprintf(w, `{"code":"AAPL","data":[{"expirationDate":%q,"options":{
				"CALL":[{"type":"CALL","strike":230,"bid":4.0,"ask":4.2,"volume":50,"openInterest":800,"impliedVolatility":30,
					"delta":0.36,"gamma":0.02,"theta":-0.08,"vega":0.25,"rho":0.05}],
				"PUT":[{"type":"PUT","strike":225,"bid":3.0,"ask":3.2,"volume":25,"openInterest":600,"impliedVolatility":30,
					"delta":-0.3,"gamma":0.02,"theta":-0.07,"vega":0.24,"rho":-0.04}]
			}}]}`, expiry)
		case r.URL.Path == "/calendar/earnings":
			_, _ = w.Write([]byte(`{"earnings":[{"code":"AAPL.US","report_date":"2025-01-30"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, WithLookbackDays(400))

	snap, err := svc.BuildMarketContext(context.Background(), "AAPL", nil)
	require.NoError(t, err)

	mc := snap.Context
	assert.Equal(t, "AAPL", mc.Ticker)
	assert.InDelta(t, 229.5, mc.CurrentPrice, 1e-9)
	assert.InDelta(t, 230.5, mc.Price52wHigh, 1e-9)
	assert.InDelta(t, 103.0, mc.Price52wLow, 1e-9)
	assert.Equal(t, 100.0, mc.RSI14)
	assert.Equal(t, "bullish", mc.MACDSignal)
	assert.Equal(t, 50.0, mc.IVRank, "single IV level ranks at the midpoint")
	assert.InDelta(t, 0.30, mc.ATMIV30d, 1e-12)
	assert.Equal(t, 0.5, mc.PutCallRatio)
	require.NotNil(t, mc.NextEarnings)
	assert.Equal(t, "2025-01-30", mc.NextEarnings.Format("2006-01-02"))

	assert.Equal(t, models.DirectionBullish, snap.Direction)
	require.NotNil(t, snap.Contract)
	assert.Equal(t, 230.0, snap.Contract.Strike)
	assert.Equal(t, 230.0, mc.TargetStrike)
	assert.Equal(t, 0.36, mc.TargetDelta)
	assert.Equal(t, 45, mc.DTETarget)
	require.NotNil(t, snap.ADX())
	assert.Greater(t, *snap.ADX(), 20.0)
	assert.Equal(t, 2, snap.ChainSize)
}

func TestBuildMarketContext_OptionalSourcesFail(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/eod/") {
			_, _ = w.Write([]byte(barsJSON(40)))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	snap, err := svc.BuildMarketContext(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.Zero(t, snap.Context.IVRank)
	assert.Nil(t, snap.Context.NextEarnings)
	assert.Nil(t, snap.Contract)
	assert.NotNil(t, snap.ADX())
}
