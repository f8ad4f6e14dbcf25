package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/httpx"
	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/scope"
	"github.com/diewo77/invoice-tracker/internal/services"
	"github.com/diewo77/invoice-tracker/internal/storage"
	"github.com/diewo77/invoice-tracker/internal/validation"
)

// maxUploadBytes caps an invoice document at 20 MiB.
const maxUploadBytes = 20 << 20

type InvoiceHandler struct {
	DB      *gorm.DB
	Store   storage.FileStore
	Summary *services.SummaryService
}

func NewInvoiceHandler(db *gorm.DB, store storage.FileStore, summary *services.SummaryService) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Store: store, Summary: summary}
}

// invoiceView decorates an invoice with the public URL of its document.
type invoiceView struct {
	models.Invoice
	FileURL string `json:"file_url"`
}

func (h *InvoiceHandler) view(inv models.Invoice) invoiceView {
	return invoiceView{Invoice: inv, FileURL: h.Store.URL(inv.FilePath)}
}

func (h *InvoiceHandler) views(invs []models.Invoice) []invoiceView {
	out := make([]invoiceView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, h.view(inv))
	}
	return out
}

func (h *InvoiceHandler) scoped(principal *models.User) *gorm.DB {
	return scope.Invoices(h.DB.Model(&models.Invoice{}), principal)
}

// ListOrCreate dispatches GET /invoices and POST /invoices.
func (h *InvoiceHandler) ListOrCreate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		httpx.MethodNotAllowed(w, "GET, POST")
	}
}

func (h *InvoiceHandler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	q := h.scoped(principal)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("invoices.status = ?", status)
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		q = q.Where("invoices.type = ?", typ)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "invoice_list_failed", nil)
		return
	}
	limit, offset := pagination(r)
	var invoices []models.Invoice
	err := q.
		Preload("Client").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_comments.created_at, invoice_comments.id") }).
		Preload("Comments.Author").
		Order("invoices.date DESC, invoices.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&invoices).Error
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "invoice_list_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":  h.views(invoices),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *InvoiceHandler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_multipart", nil)
		return
	}
	typ := r.FormValue("type")
	supplier := strings.TrimSpace(r.FormValue("supplier_name"))
	customer := strings.TrimSpace(r.FormValue("customer_name"))

	v := validation.Violations{}
	validation.OneOf("type", typ, models.InvoiceTypes, v)
	amount := validation.Amount("amount", r.FormValue("amount"), v)
	date, err := models.ParseDate(r.FormValue("date"))
	if err != nil {
		v["date"] = "invalid_date"
	}
	switch typ {
	case models.TypeExpense:
		validation.Required("supplier_name", supplier, v)
	case models.TypeRevenue:
		validation.Required("customer_name", customer, v)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		v["file"] = "required"
	} else {
		defer file.Close()
		validation.FileExtension("file", header.Filename, models.AllowedFileExtensions, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	storedPath, err := h.Store.Save(header.Filename, file)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "file_store_failed", nil)
		return
	}
	invoice := models.Invoice{
		ClientID:     principal.ID,
		Type:         typ,
		FilePath:     storedPath,
		Amount:       amount,
		Date:         date,
		Description:  strings.TrimSpace(r.FormValue("description")),
		Status:       models.StatusUploaded,
		SupplierName: supplier,
		CustomerName: customer,
	}
	if err := h.DB.Create(&invoice).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "invoice_create_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.view(invoice))
}

// Get handles GET /invoices/get?id=.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.MethodNotAllowed(w, "GET")
		return
	}
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var invoice models.Invoice
	err := h.scoped(principal).
		Preload("Client").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_comments.created_at, invoice_comments.id") }).
		Preload("Comments.Author").
		First(&invoice, id).Error
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(invoice))
}

type invoiceUpdateReq struct {
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

// Update handles POST /invoices/update?id=. Only status and description are
// mutable; amount, date, type and the document are fixed at upload.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, "POST")
		return
	}
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req invoiceUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if req.Status != nil {
		validation.OneOf("status", *req.Status, models.InvoiceStatuses, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	var invoice models.Invoice
	if err := h.scoped(principal).First(&invoice, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	updates := map[string]any{}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&invoice).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "invoice_update_failed", nil)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, h.view(invoice))
}

// Delete handles POST /invoices/delete?id= and removes the invoice with its
// comments in one transaction.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, "POST")
		return
	}
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var invoice models.Invoice
	if err := h.scoped(principal).First(&invoice, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoice).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "invoice_delete_failed", nil)
		return
	}
	httpx.NoContent(w)
}

type commentCreateReq struct {
	Content string `json:"content"`
}

// Comments handles GET/POST /invoices/comments?id= – the comment thread of
// one visible invoice.
func (h *InvoiceHandler) Comments(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var invoice models.Invoice
	if err := h.scoped(principal).First(&invoice, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	switch r.Method {
	case http.MethodGet:
		var comments []models.InvoiceComment
		err := h.DB.Where("invoice_id = ?", invoice.ID).
			Preload("Author").
			Order("created_at, id").
			Find(&comments).Error
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "comment_list_failed", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, comments)
	case http.MethodPost:
		var req commentCreateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		v := validation.Violations{}
		validation.Required("content", req.Content, v)
		if !v.Empty() {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
			return
		}
		comment := models.InvoiceComment{
			InvoiceID: invoice.ID,
			AuthorID:  principal.ID,
			Content:   strings.TrimSpace(req.Content),
		}
		if err := h.DB.Create(&comment).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "comment_create_failed", nil)
			return
		}
		comment.Author = principal
		httpx.JSON(w, http.StatusCreated, comment)
	default:
		httpx.MethodNotAllowed(w, "GET, POST")
	}
}

// FinancialSummary handles GET /invoices/summary?start_date=&end_date=.
func (h *InvoiceHandler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.MethodNotAllowed(w, "GET")
		return
	}
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var start, end *models.Date
	v := validation.Violations{}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			v["start_date"] = "invalid_date"
		} else {
			start = &d
		}
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			v["end_date"] = "invalid_date"
		} else {
			end = &d
		}
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	summary, err := h.Summary.Compute(principal, start, end)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "summary_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
