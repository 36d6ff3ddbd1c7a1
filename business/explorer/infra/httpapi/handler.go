// Package httpapi exposes the explorer over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/business/explorer/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

// Service is the explorer surface the API serves.
type Service interface {
	Status() domain.Status
	RecentHeads() []chainDomain.Header
	WatchHeads() (<-chan chainDomain.Header, func())
	Search(ctx context.Context, query string) (domain.SearchResult, error)
	Block(ctx context.Context, sel chainDomain.Selector) (*chainDomain.Block, error)
	Account(ctx context.Context, address string) (*chainDomain.Account, error)
	Resolve(ctx context.Context, hash string) (chainDomain.LookupResult, error)
}

type Handler struct {
	svc    Service
	logger logger.LoggerInterface
	stream *headStream
}

func NewHandler(svc Service, log logger.LoggerInterface) *Handler {
	return &Handler{
		svc:    svc,
		logger: log,
		stream: newHeadStream(svc, log),
	}
}

// Mount registers the API routes under /api/v1.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/blocks/{selector}", h.GetBlock)
		r.Get("/accounts/{address}", h.GetAccount)
		r.Get("/search", h.Search)
		r.Get("/search/{hash}", h.ResolveHash)
		r.Get("/heads", h.RecentHeads)
		r.Get("/heads/ws", h.stream.ServeHTTP)
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handler) RecentHeads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"heads": h.svc.RecentHeads()})
}

func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	sel, err := chainDomain.ParseSelector(chi.URLParam(r, "selector"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	block, err := h.svc.Block(r.Context(), sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Account(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ResolveHash answers 200 for unknown hashes too; the type field tells.
func (h *Handler) ResolveHash(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.CodeInternalError, r.URL.Path)
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		appErr = appErr.WithTraceID(reqID)
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "api request failed", "path", r.URL.Path, "error", appErr.ToLog())
	} else {
		h.logger.Debug(r.Context(), "api request rejected", "path", r.URL.Path, "code", appErr.Code)
	}
	writeJSON(w, appErr.StatusCode, appErr.ToResponse())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
