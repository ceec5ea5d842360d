package handlers

import (
	"net/http"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/go-chi/chi/v5"
)

// BillHandler provides bill lifecycle and roster endpoints.
type BillHandler struct {
	bills *services.BillService
}

func NewBillHandler(bills *services.BillService) *BillHandler {
	return &BillHandler{bills: bills}
}

// BillRouter registers bill, member, and access routes.
func BillRouter(r chi.Router, bills *services.BillService) {
	handler := NewBillHandler(bills)

	r.Post("/create", handler.Create)
	r.Post("/list", handler.List)
	r.Post("/get", handler.Get)
	r.Post("/update", handler.Update)
	r.Post("/multi/delete", handler.DeleteMany)

	r.Route("/member", func(r chi.Router) {
		r.Post("/add", handler.AddMember)
		r.Post("/remove", handler.RemoveMember)
		r.Post("/bind", handler.BindMember)
		r.Post("/update", handler.UpdateMember)
	})

	r.Route("/access", func(r chi.Router) {
		r.Post("/update", handler.UpdateAccess)
		r.Post("/list", handler.ListAccess)
	})
}

type CreateBillRequest struct {
	Title string `json:"title"`
}

func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	bill, err := h.bills.Create(r.Context(), userFromContext(r.Context()), req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

type ListBillsRequest struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	var req ListBillsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	bills, err := h.bills.ListForUser(r.Context(), userFromContext(r.Context()), req.Skip, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

type BillIDRequest struct {
	BillID int64 `json:"bill_id"`
}

func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req BillIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	bill, err := h.bills.Get(r.Context(), userFromContext(r.Context()), req.BillID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

type UpdateBillRequest struct {
	BillID int64  `json:"bill_id"`
	Title  string `json:"title"`
}

func (h *BillHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateBillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.bills.Update(r.Context(), userFromContext(r.Context()), req.BillID, req.Title); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

type DeleteBillsRequest struct {
	IDList []int64 `json:"id_list"`
}

func (h *BillHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req DeleteBillsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.bills.DeleteMany(r.Context(), userFromContext(r.Context()), req.IDList); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

type AddMemberRequest struct {
	BillID int64  `json:"bill_id"`
	Name   string `json:"name"`
	UserID *int64 `json:"user_id,omitempty"`
}

func (h *BillHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	member, err := h.bills.AddMember(r.Context(), userFromContext(r.Context()), req.BillID, req.Name, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

type RemoveMemberRequest struct {
	BillID   int64 `json:"bill_id"`
	MemberID int64 `json:"bill_member_id"`
}

func (h *BillHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	var req RemoveMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.bills.RemoveMember(r.Context(), userFromContext(r.Context()), req.BillID, req.MemberID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

type BindMemberRequest struct {
	BillID   int64  `json:"bill_id"`
	MemberID int64  `json:"bill_member_id"`
	UserID   *int64 `json:"user_id"`
}

func (h *BillHandler) BindMember(w http.ResponseWriter, r *http.Request) {
	var req BindMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.bills.BindMember(r.Context(), userFromContext(r.Context()), req.BillID, req.MemberID, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

type UpdateMemberRequest struct {
	BillID   int64  `json:"bill_id"`
	MemberID int64  `json:"bill_member_id"`
	Name     string `json:"name"`
}

func (h *BillHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.bills.UpdateMember(r.Context(), userFromContext(r.Context()), req.BillID, req.MemberID, req.Name); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

type UpdateAccessRequest struct {
	BillID     int64               `json:"bill_id"`
	AccessList []types.AccessGrant `json:"access_list"`
}

// UpdateAccess replaces the whole access roster. The caller must
// include an owner row to keep any; a list without one leaves the bill
// ownerless.
func (h *BillHandler) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.bills.UpdateAccess(r.Context(), userFromContext(r.Context()), req.BillID, req.AccessList); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

func (h *BillHandler) ListAccess(w http.ResponseWriter, r *http.Request) {
	var req BillIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entries, err := h.bills.ListAccess(r.Context(), userFromContext(r.Context()), req.BillID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
