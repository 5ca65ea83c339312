package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeWatchlistStorage struct {
	lists map[string]*models.Watchlist
	next  int
}

func newFakeWatchlistStorage() *fakeWatchlistStorage {
	return &fakeWatchlistStorage{lists: map[string]*models.Watchlist{}}
}

func (f *fakeWatchlistStorage) CreateWatchlist(ctx context.Context, name string, tickers []string) (*models.Watchlist, error) {
	for _, l := range f.lists {
		if l.Name == name {
			return nil, fmt.Errorf("watchlist %q: %w", name, interfaces.ErrRecordExists)
		}
	}
	f.next++
	list := &models.Watchlist{ID: fmt.Sprintf("wl_%d", f.next), Name: name, Tickers: append([]string{}, tickers...)}
	sort.Strings(list.Tickers)
	f.lists[list.ID] = list
	return list, nil
}

func (f *fakeWatchlistStorage) GetWatchlist(ctx context.Context, id string) (*models.Watchlist, error) {
	list, ok := f.lists[id]
	if !ok {
		return nil, fmt.Errorf("watchlist %s: %w", id, interfaces.ErrRecordNotFound)
	}
	return list, nil
}

func (f *fakeWatchlistStorage) GetWatchlistByName(ctx context.Context, name string) (*models.Watchlist, error) {
	for _, l := range f.lists {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("watchlist %q: %w", name, interfaces.ErrRecordNotFound)
}

func (f *fakeWatchlistStorage) ListWatchlists(ctx context.Context) ([]models.Watchlist, error) {
	var out []models.Watchlist
	for _, l := range f.lists {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeWatchlistStorage) AddTickers(ctx context.Context, id string, tickers []string) (*models.Watchlist, error) {
	list, err := f.GetWatchlist(ctx, id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, t := range list.Tickers {
		seen[t] = true
	}
	for _, t := range tickers {
		if !seen[t] {
			seen[t] = true
			list.Tickers = append(list.Tickers, t)
		}
	}
	sort.Strings(list.Tickers)
	return list, nil
}

func (f *fakeWatchlistStorage) RemoveTickers(ctx context.Context, id string, tickers []string) (*models.Watchlist, error) {
	list, err := f.GetWatchlist(ctx, id)
	if err != nil {
		return nil, err
	}
	kept := []string{}
	for _, t := range list.Tickers {
		drop := false
		for _, r := range tickers {
			if strings.EqualFold(t, r) {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, t)
		}
	}
	list.Tickers = kept
	return list, nil
}

func (f *fakeWatchlistStorage) DeleteWatchlist(ctx context.Context, id string) error {
	if _, ok := f.lists[id]; !ok {
		return fmt.Errorf("watchlist %s: %w", id, interfaces.ErrRecordNotFound)
	}
	delete(f.lists, id)
	return nil
}

func serveWatchlists(h *WatchlistHandler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if path == "/api/watchlists" {
		h.WatchlistsHandler(rec, req)
	} else {
		h.WatchlistRoutes(rec, req)
	}
	return rec
}

func TestWatchlistHandler_Lifecycle(t *testing.T) {
	storage := newFakeWatchlistStorage()
	h := NewWatchlistHandler(storage, arbor.NewLogger())

	rec := serveWatchlists(h, http.MethodPost, "/api/watchlists", `{"name": "tech", "tickers": ["msft", "aapl", "AAPL"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	assert.Equal(t, "tech", created["name"])
	assert.Equal(t, []interface{}{"AAPL", "MSFT"}, created["tickers"])
	id := created["id"].(string)

	rec = serveWatchlists(h, http.MethodPost, "/api/watchlists", `{"name": "tech"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serveWatchlists(h, http.MethodPost, "/api/watchlists/tech/tickers", `{"tickers": ["goog", "MSFT"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"AAPL", "GOOG", "MSFT"}, decodeBody(t, rec)["tickers"])

	rec = serveWatchlists(h, http.MethodDelete, "/api/watchlists/"+id+"/tickers", `{"tickers": ["aapl"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"GOOG", "MSFT"}, decodeBody(t, rec)["tickers"])

	rec = serveWatchlists(h, http.MethodDelete, "/api/watchlists/tech/tickers/goog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"MSFT"}, decodeBody(t, rec)["tickers"])

	rec = serveWatchlists(h, http.MethodGet, "/api/watchlists", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = serveWatchlists(h, http.MethodGet, "/api/watchlists/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tech", decodeBody(t, rec)["name"])

	rec = serveWatchlists(h, http.MethodDelete, "/api/watchlists/tech", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serveWatchlists(h, http.MethodGet, "/api/watchlists/tech", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchlistHandler_BadRequests(t *testing.T) {
	storage := newFakeWatchlistStorage()
	_, err := storage.CreateWatchlist(context.Background(), "tech", []string{"AAPL"})
	require.NoError(t, err)
	h := NewWatchlistHandler(storage, arbor.NewLogger())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing name", http.MethodPost, "/api/watchlists", `{"tickers": ["AAPL"]}`, http.StatusBadRequest},
		{"invalid ticker", http.MethodPost, "/api/watchlists", `{"name": "x", "tickers": ["$$$"]}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/watchlists", `{"name": "x", "color": "red"}`, http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/watchlists", ``, http.StatusMethodNotAllowed},
		{"no tickers to add", http.MethodPost, "/api/watchlists/tech/tickers", `{"tickers": []}`, http.StatusBadRequest},
		{"invalid ticker to add", http.MethodPost, "/api/watchlists/tech/tickers", `{"tickers": ["bad ticker!"]}`, http.StatusBadRequest},
		{"unknown watchlist", http.MethodGet, "/api/watchlists/nope", ``, http.StatusNotFound},
		{"unknown subpath", http.MethodGet, "/api/watchlists/tech/scores", ``, http.StatusNotFound},
		{"no ref", http.MethodGet, "/api/watchlists/", ``, http.StatusNotFound},
		{"put on watchlist", http.MethodPut, "/api/watchlists/tech", ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWatchlists(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
