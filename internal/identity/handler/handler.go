// Package handler exposes the identity service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"campusid/internal/identity/models"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/httputil"
	"campusid/pkg/requestcontext"
)

// Service is the identity service as the handler uses it.
type Service interface {
	Create(ctx context.Context, p models.Profile) (*models.IdentityRecord, error)
	Edit(ctx context.Context, req models.EditRequest) (*models.EditResult, error)
	Get(ctx context.Context, id string) (*models.IdentityDetails, error)
	ListAudit(ctx context.Context, id string) ([]models.AuditEntry, error)
	Search(ctx context.Context, f models.SearchFilter) ([]*models.IdentityRecord, error)
	Delete(ctx context.Context, id string) error
}

// Handler serves the /identities routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the identity routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/identities", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleSearch)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleEdit)
		r.Delete("/{id}", h.handleDelete)
		r.Get("/{id}/audit", h.handleListAudit)
	})
}

// handleCreate answers once the identity is stored and the confirmation has
// been attempted; latency includes notification up to the notify timeout.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.Create(ctx, req.Profile())
	if err != nil {
		h.writeError(ctx, w, "create identity", err)
		return
	}
	w.Header().Set("Location", "/identities/"+rec.ID)
	httputil.WriteJSON(w, http.StatusCreated, toIdentityResponse(rec))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseSearchRequest(r.URL.Query())
	if err != nil {
		h.writeError(ctx, w, "search identities", err)
		return
	}

	records, err := h.service.Search(ctx, req.Filter())
	if err != nil {
		h.writeError(ctx, w, "search identities", err)
		return
	}
	resp := SearchResponse{Identities: make([]IdentityResponse, len(records)), Count: len(records)}
	for i, rec := range records {
		resp.Identities[i] = toIdentityResponse(rec)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	details, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "get identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IdentityDetailsResponse{
		Identity: toIdentityResponse(details.Record),
		Audit:    toAuditResponses(details.Audit),
	})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[EditIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Edit(ctx, req.EditRequest(id))
	if err != nil {
		h.writeError(ctx, w, "edit identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EditResponse{
		Identity: toIdentityResponse(res.Record),
		Changes:  toAuditResponses(res.Changes),
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeError(ctx, w, "delete identity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.ListAudit(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "list audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditListResponse{Entries: toAuditResponses(entries)})
}

// writeError logs at error level only for failures the caller cannot fix.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err.Error(),
	}
	if de, ok := dErrors.As(err); ok && httputil.StatusFor(de.Code) < http.StatusInternalServerError {
		h.logger.InfoContext(ctx, "identity request rejected", attrs...)
	} else {
		h.logger.ErrorContext(ctx, "identity request failed", attrs...)
	}
	httputil.WriteError(w, err)
}
