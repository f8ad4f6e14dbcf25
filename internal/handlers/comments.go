package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/httpx"
	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/scope"
	"github.com/diewo77/invoice-tracker/internal/validation"
)

type CommentHandler struct {
	DB *gorm.DB
}

func NewCommentHandler(db *gorm.DB) *CommentHandler {
	return &CommentHandler{DB: db}
}

type commentReq struct {
	InvoiceID uint   `json:"invoice_id"`
	Content   string `json:"content"`
}

// ListOrCreate dispatches GET /comments and POST /comments. The flat list
// covers every comment on an invoice the principal can see, oldest first.
func (h *CommentHandler) ListOrCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit, offset := pagination(r)
		var comments []models.InvoiceComment
		err := scope.Comments(h.DB.Model(&models.InvoiceComment{}), principal).
			Preload("Author").
			Order("invoice_comments.created_at, invoice_comments.id").
			Limit(limit).Offset(offset).
			Find(&comments).Error
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "comment_list_failed", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, comments)
	case http.MethodPost:
		var req commentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		v := validation.Violations{}
		validation.Required("content", req.Content, v)
		if req.InvoiceID == 0 {
			v["invoice_id"] = "required"
		}
		if !v.Empty() {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
			return
		}
		var invoice models.Invoice
		if err := scope.Invoices(h.DB.Model(&models.Invoice{}), principal).First(&invoice, req.InvoiceID).Error; err != nil {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
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
