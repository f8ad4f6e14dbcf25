package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Invoicing models
const (
	TypeExpense = "expense"
	TypeRevenue = "revenue"

	StatusUploaded  = "uploaded"
	StatusReviewed  = "reviewed"
	StatusProcessed = "processed"
)

// InvoiceTypes and InvoiceStatuses list the accepted label values for
// validation. Status carries no enforced transition order: any visible
// invoice can be set to any status.
var (
	InvoiceTypes    = []string{TypeExpense, TypeRevenue}
	InvoiceStatuses = []string{StatusUploaded, StatusReviewed, StatusProcessed}
)

// AllowedFileExtensions restricts uploaded invoice documents.
var AllowedFileExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".xml"}

// Invoice is a document uploaded by a client. The owning client is fixed at
// creation; only Status and Description may change afterwards. Exactly one of
// SupplierName/CustomerName is populated, matching Type.
type Invoice struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	ClientID     uint             `gorm:"not null;index" json:"client_id"`
	Client       *User            `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Type         string           `gorm:"not null;index" json:"type"`
	FilePath     string           `gorm:"not null" json:"file"`
	Amount       decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"amount"`
	Date         Date             `gorm:"type:date;not null;index" json:"date"`
	Description  string           `json:"description"`
	Status       string           `gorm:"not null;default:'uploaded';index" json:"status"`
	SupplierName string           `json:"supplier_name,omitempty"`
	CustomerName string           `json:"customer_name,omitempty"`
	Comments     []InvoiceComment `gorm:"foreignKey:InvoiceID" json:"comments,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// AllowedFileExtension reports whether the filename carries one of the
// accepted invoice document extensions.
func AllowedFileExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedFileExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// InvoiceComment is free text attached to an invoice by a user. Invoice and
// author are fixed at creation. Comments list oldest first.
type InvoiceComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	InvoiceID uint      `gorm:"not null;index" json:"invoice_id"`
	AuthorID  uint      `gorm:"not null;index" json:"-"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
