package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/services"
	"github.com/diewo77/invoice-tracker/internal/storage"
)

func newInvoiceHandlerForTest(t *testing.T, db *gorm.DB) *InvoiceHandler {
	t.Helper()
	store := storage.NewDiskStore(t.TempDir(), "http://files.local")
	return NewInvoiceHandler(db, store, services.NewSummaryService(db))
}

// multipartInvoice builds a multipart body from field pairs plus one file part.
func multipartInvoice(t *testing.T, fields map[string]string, filename string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := fw.Write([]byte("%PDF-1.4 fixture")); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestInvoiceCreateMultipart(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")

	body, ct := multipartInvoice(t, map[string]string{
		"type":          "expense",
		"amount":        "120.50",
		"date":          "2026-02-14",
		"description":   "office chairs",
		"supplier_name": "ACME Supplies",
	}, "chairs.pdf")
	req := authReq(httptest.NewRequest(http.MethodPost, "/invoices", body), client)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.ListOrCreate(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID       uint   `json:"id"`
		ClientID uint   `json:"client_id"`
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		FileURL  string `json:"file_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ClientID != client.ID {
		t.Fatalf("owner must be the principal, got %d", created.ClientID)
	}
	if created.Status != models.StatusUploaded {
		t.Fatalf("status must start as uploaded, got %q", created.Status)
	}
	if created.Amount != "120.5" {
		t.Fatalf("unexpected amount %q", created.Amount)
	}
	if !strings.HasPrefix(created.FileURL, "http://files.local/uploads/") {
		t.Fatalf("unexpected file_url %q", created.FileURL)
	}
}

func TestInvoiceCreateValidation(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")

	cases := []struct {
		name     string
		fields   map[string]string
		filename string
		field    string
	}{
		{
			"expense requires supplier",
			map[string]string{"type": "expense", "amount": "10.00", "date": "2026-02-14"},
			"a.pdf", "supplier_name",
		},
		{
			"revenue requires customer",
			map[string]string{"type": "revenue", "amount": "10.00", "date": "2026-02-14"},
			"a.pdf", "customer_name",
		},
		{
			"bad type",
			map[string]string{"type": "refund", "amount": "10.00", "date": "2026-02-14"},
			"a.pdf", "type",
		},
		{
			"bad extension",
			map[string]string{"type": "expense", "amount": "10.00", "date": "2026-02-14", "supplier_name": "S"},
			"a.exe", "file",
		},
		{
			"missing file",
			map[string]string{"type": "expense", "amount": "10.00", "date": "2026-02-14", "supplier_name": "S"},
			"", "file",
		},
		{
			"too many decimal places",
			map[string]string{"type": "expense", "amount": "10.001", "date": "2026-02-14", "supplier_name": "S"},
			"a.pdf", "amount",
		},
		{
			"negative amount",
			map[string]string{"type": "expense", "amount": "-5.00", "date": "2026-02-14", "supplier_name": "S"},
			"a.pdf", "amount",
		},
		{
			"bad date",
			map[string]string{"type": "expense", "amount": "10.00", "date": "14/02/2026", "supplier_name": "S"},
			"a.pdf", "date",
		},
	}
	for _, tc := range cases {
		body, ct := multipartInvoice(t, tc.fields, tc.filename)
		req := authReq(httptest.NewRequest(http.MethodPost, "/invoices", body), client)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		h.ListOrCreate(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d body=%s", tc.name, w.Code, w.Body.String())
		}
		var resp struct {
			Details map[string]string `json:"details"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if resp.Details[tc.field] == "" {
			t.Fatalf("%s: expected violation on %q, got %#v", tc.name, tc.field, resp.Details)
		}
	}
	var count int64
	db.Model(&models.Invoice{}).Count(&count)
	if count != 0 {
		t.Fatalf("no invoice should survive validation failures, got %d", count)
	}
}

func TestInvoiceListScopedAndOrdered(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	acc := seedHandlerUser(t, db, "acc@example.com", models.RoleAccountant, "pw-not-used")
	managed := seedHandlerUser(t, db, "m@example.com", models.RoleClient, "pw-not-used")
	stranger := seedHandlerUser(t, db, "s@example.com", models.RoleClient, "pw-not-used")
	linkClient(t, db, acc, managed)
	older := seedHandlerInvoice(t, db, managed, models.TypeExpense, "2026-01-05", "10.00")
	newer := seedHandlerInvoice(t, db, managed, models.TypeRevenue, "2026-01-20", "20.00")
	seedHandlerInvoice(t, db, stranger, models.TypeExpense, "2026-01-10", "99.00")

	req := authReq(httptest.NewRequest(http.MethodGet, "/invoices", nil), acc)
	w := httptest.NewRecorder()
	h.ListOrCreate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var list struct {
		Items []models.Invoice `json:"items"`
		Total int64            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 2 || len(list.Items) != 2 {
		t.Fatalf("expected the 2 managed invoices, got %#v", list)
	}
	if list.Items[0].ID != newer.ID || list.Items[1].ID != older.ID {
		t.Fatalf("expected newest date first, got %d then %d", list.Items[0].ID, list.Items[1].ID)
	}

	// type filter
	req = authReq(httptest.NewRequest(http.MethodGet, "/invoices?type=expense", nil), acc)
	w = httptest.NewRecorder()
	h.ListOrCreate(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if list.Total != 1 || list.Items[0].ID != older.ID {
		t.Fatalf("type filter failed: %#v", list)
	}
}

func TestInvoiceGetOutsideScopeIsNotFound(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")
	stranger := seedHandlerUser(t, db, "s@example.com", models.RoleClient, "pw-not-used")
	inv := seedHandlerInvoice(t, db, stranger, models.TypeExpense, "2026-01-10", "10.00")

	req := authReq(httptest.NewRequest(http.MethodGet, "/invoices/get?id="+strconv.Itoa(int(inv.ID)), nil), client)
	w := httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestInvoiceUpdateStatusAndDescription(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")
	inv := seedHandlerInvoice(t, db, client, models.TypeExpense, "2026-01-10", "10.00")

	body := `{"status":"reviewed","description":"checked"}`
	req := authReq(httptest.NewRequest(http.MethodPost, "/invoices/update?id="+strconv.Itoa(int(inv.ID)), strings.NewReader(body)), client)
	w := doJSON(t, h.Update, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var stored models.Invoice
	if err := db.First(&stored, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != models.StatusReviewed || stored.Description != "checked" {
		t.Fatalf("update not applied: %#v", stored)
	}

	// Unknown status label rejected
	req = authReq(httptest.NewRequest(http.MethodPost, "/invoices/update?id="+strconv.Itoa(int(inv.ID)), strings.NewReader(`{"status":"archived"}`)), client)
	w = doJSON(t, h.Update, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad status expected 400 got %d", w.Code)
	}
}

func TestInvoiceDeleteRemovesComments(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")
	inv := seedHandlerInvoice(t, db, client, models.TypeExpense, "2026-01-10", "10.00")
	if err := db.Create(&models.InvoiceComment{InvoiceID: inv.ID, AuthorID: client.ID, Content: "note"}).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}

	req := authReq(httptest.NewRequest(http.MethodPost, "/invoices/delete?id="+strconv.Itoa(int(inv.ID)), nil), client)
	w := httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
	var invoices, comments int64
	db.Model(&models.Invoice{}).Count(&invoices)
	db.Model(&models.InvoiceComment{}).Count(&comments)
	if invoices != 0 || comments != 0 {
		t.Fatalf("orphan rows left: invoices=%d comments=%d", invoices, comments)
	}
}

func TestInvoiceCommentsThread(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	acc := seedHandlerUser(t, db, "acc@example.com", models.RoleAccountant, "pw-not-used")
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")
	linkClient(t, db, acc, client)
	inv := seedHandlerInvoice(t, db, client, models.TypeExpense, "2026-01-10", "10.00")

	// Accountant comments on a managed client's invoice
	body := `{"content":"please attach the receipt"}`
	req := authReq(httptest.NewRequest(http.MethodPost, "/invoices/comments?id="+strconv.Itoa(int(inv.ID)), strings.NewReader(body)), acc)
	w := doJSON(t, h.Comments, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	// Client reads the thread
	req = authReq(httptest.NewRequest(http.MethodGet, "/invoices/comments?id="+strconv.Itoa(int(inv.ID)), nil), client)
	w = httptest.NewRecorder()
	h.Comments(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var comments []models.InvoiceComment
	if err := json.Unmarshal(w.Body.Bytes(), &comments); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(comments) != 1 || comments[0].Content != "please attach the receipt" {
		t.Fatalf("unexpected thread: %#v", comments)
	}
	if comments[0].Author == nil || comments[0].Author.Email != "acc@example.com" {
		t.Fatalf("author not attached: %#v", comments[0])
	}

	// Empty content rejected
	req = authReq(httptest.NewRequest(http.MethodPost, "/invoices/comments?id="+strconv.Itoa(int(inv.ID)), strings.NewReader(`{"content":"  "}`)), client)
	w = doJSON(t, h.Comments, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty content expected 400 got %d", w.Code)
	}

	// Strangers cannot see the thread
	stranger := seedHandlerUser(t, db, "s@example.com", models.RoleClient, "pw-not-used")
	req = authReq(httptest.NewRequest(http.MethodGet, "/invoices/comments?id="+strconv.Itoa(int(inv.ID)), nil), stranger)
	w = httptest.NewRecorder()
	h.Comments(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("stranger expected 404 got %d", w.Code)
	}
}

func TestInvoiceSummaryEndpoint(t *testing.T) {
	db := setupHandlerDB(t)
	h := newInvoiceHandlerForTest(t, db)
	client := seedHandlerUser(t, db, "c@example.com", models.RoleClient, "pw-not-used")
	seedHandlerInvoice(t, db, client, models.TypeExpense, "2026-03-01", "100.00")
	seedHandlerInvoice(t, db, client, models.TypeExpense, "2026-03-05", "20.50")
	seedHandlerInvoice(t, db, client, models.TypeRevenue, "2026-03-10", "300.00")
	seedHandlerInvoice(t, db, client, models.TypeRevenue, "2026-04-02", "999.00")

	req := authReq(httptest.NewRequest(http.MethodGet, "/invoices/summary?start_date=2026-03-01&end_date=2026-03-31", nil), client)
	w := httptest.NewRecorder()
	h.FinancialSummary(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var summary struct {
		Period struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		} `json:"period"`
		Expenses struct {
			Total *string `json:"total"`
			Count int64   `json:"count"`
		} `json:"expenses"`
		Revenue struct {
			Total *string `json:"total"`
			Count int64   `json:"count"`
		} `json:"revenue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Period.StartDate != "2026-03-01" || summary.Period.EndDate != "2026-03-31" {
		t.Fatalf("period echoed wrong: %#v", summary)
	}
	if summary.Expenses.Count != 2 || summary.Expenses.Total == nil || *summary.Expenses.Total != "120.5" {
		t.Fatalf("expenses wrong: %#v", summary.Expenses)
	}
	if summary.Revenue.Count != 1 || summary.Revenue.Total == nil || *summary.Revenue.Total != "300" {
		t.Fatalf("revenue wrong: %#v", summary.Revenue)
	}

	// Malformed date
	req = authReq(httptest.NewRequest(http.MethodGet, "/invoices/summary?start_date=March+1", nil), client)
	w = httptest.NewRecorder()
	h.FinancialSummary(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date expected 400 got %d", w.Code)
	}
}
