package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/auth"
	"github.com/diewo77/invoice-tracker/internal/models"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Invoice{}, &models.InvoiceComment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedHandlerUser(t *testing.T, db *gorm.DB, email, role, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Email: email, Password: string(hash), Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedHandlerInvoice(t *testing.T, db *gorm.DB, owner *models.User, typ, day, amount string) *models.Invoice {
	t.Helper()
	d, err := models.ParseDate(day)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	inv := &models.Invoice{
		ClientID: owner.ID,
		Type:     typ,
		FilePath: "invoices/fixture.pdf",
		Amount:   mustDecimal(t, amount),
		Date:     d,
		Status:   models.StatusUploaded,
	}
	if typ == models.TypeExpense {
		inv.SupplierName = "ACME Supplies"
	} else {
		inv.CustomerName = "Globex"
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func linkClient(t *testing.T, db *gorm.DB, accountant, client *models.User) {
	t.Helper()
	if err := db.Exec("INSERT INTO accountant_clients (accountant_id, client_id) VALUES (?, ?)", accountant.ID, client.ID).Error; err != nil {
		t.Fatalf("link client: %v", err)
	}
}

// authReq attaches the user id to the request context the same way the auth
// middleware does.
func authReq(req *http.Request, u *models.User) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), u.ID))
}

func doJSON(t *testing.T, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}
