package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/internal/services"
	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxReceiptSize = 10 << 20 // 10 MiB

// ItemHandler provides ledger item and receipt endpoints.
type ItemHandler struct {
	items *services.ItemService
}

func NewItemHandler(items *services.ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

// ItemRouter registers item routes.
func ItemRouter(r chi.Router, items *services.ItemService) {
	handler := NewItemHandler(items)

	r.Post("/create", handler.Create)
	r.Post("/update", handler.Update)
	r.Post("/delete", handler.Delete)
	r.Post("/list", handler.List)

	r.Post("/receipt/upload", handler.UploadReceipt)
	r.Get("/receipt", handler.DownloadReceipt)
	r.Post("/receipt/delete", handler.DeleteReceipt)
}

type CreateItemRequest struct {
	BillID       int64           `json:"bill_id"`
	Type         string          `json:"type"`
	TypeIcon     string          `json:"type_icon"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PaidBy       int64           `json:"paid_by"`
	OccurredTime time.Time       `json:"occurred_time"`
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.items.Create(r.Context(), userFromContext(r.Context()), req.BillID, types.Item{
		Type:         req.Type,
		TypeIcon:     req.TypeIcon,
		Description:  req.Description,
		Amount:       req.Amount,
		Currency:     req.Currency,
		PaidBy:       req.PaidBy,
		OccurredTime: req.OccurredTime,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type UpdateItemRequest struct {
	BillID int64            `json:"bill_id"`
	ItemID int64            `json:"item_id"`
	Fields types.ItemUpdate `json:"fields"`
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.items.Update(r.Context(), userFromContext(r.Context()), req.BillID, req.ItemID, req.Fields)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type ItemIDRequest struct {
	BillID int64 `json:"bill_id"`
	ItemID int64 `json:"item_id"`
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req ItemIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.items.Delete(r.Context(), userFromContext(r.Context()), req.BillID, req.ItemID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

type ListItemsRequest struct {
	BillID int64 `json:"bill_id"`
	Skip   int   `json:"skip"`
	Limit  int   `json:"limit"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var req ListItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := h.items.List(r.Context(), userFromContext(r.Context()), req.BillID, req.Skip, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// UploadReceipt accepts a multipart form with bill_id, item_id, and a
// "file" part and attaches it to the item.
func (h *ItemHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	billID, err1 := strconv.ParseInt(r.FormValue("bill_id"), 10, 64)
	itemID, err2 := strconv.ParseInt(r.FormValue("item_id"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "bill_id and item_id are required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	err = h.items.AttachReceipt(r.Context(), userFromContext(r.Context()), billID, itemID, file, header.Size, contentType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}

// DownloadReceipt streams the receipt for bill_id/item_id query params.
func (h *ItemHandler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	billID, err1 := strconv.ParseInt(r.URL.Query().Get("bill_id"), 10, 64)
	itemID, err2 := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "bill_id and item_id are required")
		return
	}

	reader, err := h.items.GetReceipt(r.Context(), userFromContext(r.Context()), billID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, reader)
}

func (h *ItemHandler) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	var req ItemIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.items.DeleteReceipt(r.Context(), userFromContext(r.Context()), req.BillID, req.ItemID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w)
}
