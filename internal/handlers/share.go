package handlers

import (
	"net/http"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/go-chi/chi/v5"
)

// ShareHandler provides share-token endpoints.
type ShareHandler struct {
	shares *services.ShareService
}

func NewShareHandler(shares *services.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

// ShareRouter registers share-token routes.
func ShareRouter(r chi.Router, shares *services.ShareService) {
	handler := NewShareHandler(shares)

	r.Post("/", handler.Issue)
	r.Post("/list", handler.List)
	r.Post("/consume", handler.Consume)
	r.Post("/delete", handler.Revoke)
	r.Post("/delete_all", handler.RevokeAll)
}

type IssueShareRequest struct {
	BillID        int64            `json:"bill_id"`
	AccessRole    types.AccessRole `json:"access_role"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	RemainingUses *int             `json:"remaining_uses,omitempty"`
	MemberID      *int64           `json:"bill_member_id,omitempty"`
}

type IssueShareResponse struct {
	Token string `json:"token"`
}

func (h *ShareHandler) Issue(w http.ResponseWriter, r *http.Request) {
	req := IssueShareRequest{AccessRole: types.RoleObserver}
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := h.shares.Issue(
		r.Context(),
		userFromContext(r.Context()),
		req.BillID,
		req.AccessRole,
		req.ExpiresAt,
		req.RemainingUses,
		req.MemberID,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IssueShareResponse{Token: token})
}

func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	var req BillIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	views, err := h.shares.List(r.Context(), userFromContext(r.Context()), req.BillID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type ConsumeShareRequest struct {
	Token string `json:"token"`
}

type ConsumeShareResponse struct {
	BillID int64 `json:"bill_id"`
}

func (h *ShareHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	billID, err := h.shares.Redeem(r.Context(), userFromContext(r.Context()), req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsumeShareResponse{BillID: billID})
}

type RevokeShareRequest struct {
	BillID int64  `json:"bill_id"`
	Token  string `json:"token"`
}

func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.shares.Revoke(r.Context(), userFromContext(r.Context()), req.BillID, req.Token); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

func (h *ShareHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	var req BillIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.shares.RevokeAll(r.Context(), userFromContext(r.Context()), req.BillID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}
