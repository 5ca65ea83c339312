package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jobu711/optionalpha/internal/common"
	"github.com/jobu711/optionalpha/internal/interfaces"
	"github.com/jobu711/optionalpha/internal/models"
	"github.com/ternarybob/arbor"
)

// WatchlistHandler serves persisted watchlists.
type WatchlistHandler struct {
	storage interfaces.WatchlistStorage
	logger  arbor.ILogger
}

func NewWatchlistHandler(storage interfaces.WatchlistStorage, logger arbor.ILogger) *WatchlistHandler {
	return &WatchlistHandler{
		storage: storage,
		logger:  logger,
	}
}

type watchlistRequest struct {
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
}

// WatchlistsHandler handles GET /api/watchlists and POST /api/watchlists
func (h *WatchlistHandler) WatchlistsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		lists, err := h.storage.ListWatchlists(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to list watchlists")
			WriteServiceError(w, err)
			return
		}
		if lists == nil {
			lists = []models.Watchlist{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"watchlists": lists,
			"count":      len(lists),
		})

	case http.MethodPost:
		var req watchlistRequest
		if err := DecodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			WriteError(w, http.StatusBadRequest, "name is required")
			return
		}
		tickers, err := validTickers(req.Tickers)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		list, err := h.storage.CreateWatchlist(r.Context(), req.Name, tickers)
		if err != nil {
			if !errors.Is(err, interfaces.ErrRecordExists) {
				h.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create watchlist")
			}
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, list)

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// WatchlistRoutes handles /api/watchlists/{ref}[/tickers[/{ticker}]], where
// ref is a watchlist ID or name.
//
//	GET    /{ref}                   the watchlist
//	DELETE /{ref}                   delete it
//	POST   /{ref}/tickers           add {"tickers": [...]}
//	DELETE /{ref}/tickers           remove {"tickers": [...]}
//	DELETE /{ref}/tickers/{ticker}  remove one ticker
func (h *WatchlistHandler) WatchlistRoutes(w http.ResponseWriter, r *http.Request) {
	parts := PathTail(r.URL.Path, "/api/watchlists/")
	if len(parts) == 0 || len(parts) > 3 || (len(parts) > 1 && parts[1] != "tickers") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	list, err := h.resolve(r.Context(), parts[0])
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		WriteJSON(w, http.StatusOK, list)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := h.storage.DeleteWatchlist(r.Context(), list.ID); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 2 && r.Method == http.MethodPost:
		h.editTickers(w, r, list, h.storage.AddTickers)
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.editTickers(w, r, list, h.storage.RemoveTickers)
	case len(parts) == 3 && r.Method == http.MethodDelete:
		updated, err := h.storage.RemoveTickers(r.Context(), list.ID, []string{parts[2]})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

type tickerEdit func(ctx context.Context, id string, tickers []string) (*models.Watchlist, error)

func (h *WatchlistHandler) editTickers(w http.ResponseWriter, r *http.Request, list *models.Watchlist, edit tickerEdit) {
	var req struct {
		Tickers []string `json:"tickers"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tickers, err := validTickers(req.Tickers)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(tickers) == 0 {
		WriteError(w, http.StatusBadRequest, "tickers are required")
		return
	}

	updated, err := edit(r.Context(), list.ID, tickers)
	if err != nil {
		h.logger.Error().Err(err).Str("watchlist", list.Name).Msg("Failed to update watchlist")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// resolve looks a watchlist up by ID, then by name.
func (h *WatchlistHandler) resolve(ctx context.Context, ref string) (*models.Watchlist, error) {
	list, err := h.storage.GetWatchlist(ctx, ref)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return h.storage.GetWatchlistByName(ctx, ref)
	}
	return list, err
}

func validTickers(raw []string) ([]string, error) {
	valid, invalid := common.NormalizeTickers(raw)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid tickers: %s", strings.Join(invalid, ", "))
	}
	return valid, nil
}
