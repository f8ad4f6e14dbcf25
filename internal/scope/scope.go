// Package scope computes the subset of rows a principal may see. Every list
// and detail query goes through one of these builders, so an id outside the
// returned scope resolves as not-found rather than forbidden: existence of
// other users' records is never leaked.
package scope

import (
	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/models"
)

// managedClientIDs is a subquery over the manages join table: the ids of
// clients assigned to the given accountant.
func managedClientIDs(db *gorm.DB, accountantID uint) *gorm.DB {
	return db.Table("accountant_clients").Select("client_id").Where("accountant_id = ?", accountantID)
}

// managingAccountantIDs is the reverse subquery: accountants managing the
// given client.
func managingAccountantIDs(db *gorm.DB, clientID uint) *gorm.DB {
	return db.Table("accountant_clients").Select("accountant_id").Where("client_id = ?", clientID)
}

// Invoices restricts an invoice query to the principal's visible set: an
// accountant sees invoices owned by any of their managed clients, a client
// sees only their own. An empty result is valid (accountant with no clients).
func Invoices(db *gorm.DB, principal *models.User) *gorm.DB {
	if principal.IsAccountant() {
		return db.Where("invoices.client_id IN (?)", managedClientIDs(db.Session(&gorm.Session{NewDB: true}), principal.ID))
	}
	return db.Where("invoices.client_id = ?", principal.ID)
}

// Users restricts a user query to self plus the other side of the manages
// relation: an accountant sees their managed clients, a client sees the
// accountants managing them.
func Users(db *gorm.DB, principal *models.User) *gorm.DB {
	fresh := db.Session(&gorm.Session{NewDB: true})
	if principal.IsAccountant() {
		return db.Where("users.id = ? OR users.id IN (?)", principal.ID, managedClientIDs(fresh, principal.ID))
	}
	return db.Where("users.id = ? OR users.id IN (?)", principal.ID, managingAccountantIDs(fresh, principal.ID))
}

// Comments restricts a comment query to comments on visible invoices. The
// visibility test is a union: invoices owned by the principal OR owned by a
// client the principal manages, so an accountant who also owns invoices sees
// both sides.
func Comments(db *gorm.DB, principal *models.User) *gorm.DB {
	fresh := db.Session(&gorm.Session{NewDB: true})
	invoices := fresh.Table("invoices").Select("id").
		Where("client_id = ? OR client_id IN (?)",
			principal.ID, managedClientIDs(db.Session(&gorm.Session{NewDB: true}), principal.ID))
	return db.Where("invoice_comments.invoice_id IN (?)", invoices)
}
