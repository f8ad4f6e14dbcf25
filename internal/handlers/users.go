package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/httpx"
	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/scope"
	"github.com/diewo77/invoice-tracker/internal/services"
	"github.com/diewo77/invoice-tracker/internal/validation"
)

type UserHandler struct {
	DB    *gorm.DB
	Users *services.UserService
}

func NewUserHandler(db *gorm.DB, users *services.UserService) *UserHandler {
	return &UserHandler{DB: db, Users: users}
}

// List handles GET /users – users visible to the principal.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.MethodNotAllowed(w, "GET")
		return
	}
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	limit, offset := pagination(r)
	q := scope.Users(h.DB, principal)
	var total int64
	if err := q.Session(&gorm.Session{}).Model(&models.User{}).Count(&total).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "user_list_failed", nil)
		return
	}
	var users []models.User
	if err := q.Order("created_at").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "user_list_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get handles GET /users/get?id= – one visible user, 404 outside the scope.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	var user models.User
	if err := scope.Users(h.DB, principal).First(&user, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type userUpdateReq struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	CompanyName *string `json:"company_name"`
	Address     *string `json:"address"`
	TaxID       *string `json:"tax_id"`
}

// Update handles POST /users/update?id= – profile fields only. Email, role
// and password never change through this endpoint.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req userUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var user models.User
	if err := scope.Users(h.DB, principal).First(&user, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	updates := map[string]any{}
	setIf := func(col string, p *string) {
		if p != nil {
			updates[col] = strings.TrimSpace(*p)
		}
	}
	setIf("first_name", req.FirstName)
	setIf("last_name", req.LastName)
	setIf("phone_number", req.PhoneNumber)
	setIf("company_name", req.CompanyName)
	setIf("address", req.Address)
	setIf("tax_id", req.TaxID)
	if len(updates) > 0 {
		if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "user_update_failed", nil)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, user)
}

// Delete handles POST /users/delete?id= – cascades through the target's
// invoices, comments and manage links.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Users.DeleteCascade(principal, id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "user_delete_failed", nil)
		return
	}
	httpx.NoContent(w)
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles POST /profile/password for the current principal.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, "POST")
		return
	}
	principal, ok := currentUser(h.DB, r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req changePasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("old_password", req.OldPassword, v)
	validation.Required("new_password", req.NewPassword, v)
	if req.NewPassword != "" {
		validation.MinLen("new_password", req.NewPassword, 8, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if err := h.Users.ChangePassword(principal, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrWrongPassword) {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"old_password": "wrong_password"})
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "password_change_failed", nil)
		return
	}
	httpx.NoContent(w)
}

// AssignClient handles POST /users/assign_client?id=. Only an accountant may
// link, and only to a client.
func (h *UserHandler) AssignClient(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Users.AssignClient(principal, id); err != nil {
		switch {
		case errors.Is(err, services.ErrNotAccountant):
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		case errors.Is(err, services.ErrNotClient):
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"id": "not_a_client"})
		case errors.Is(err, services.ErrNotFound):
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "assign_failed", nil)
		}
		return
	}
	httpx.NoContent(w)
}

// RemoveClient handles POST /users/remove_client?id=. Removing an absent
// link is not an error.
func (h *UserHandler) RemoveClient(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Users.RemoveClient(principal, id); err != nil {
		if errors.Is(err, services.ErrNotAccountant) {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "remove_failed", nil)
		return
	}
	httpx.NoContent(w)
}
