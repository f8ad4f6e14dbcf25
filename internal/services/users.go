package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-tracker/internal/models"
	"github.com/diewo77/invoice-tracker/internal/scope"
)

// Sentinel errors translated by handlers at the request boundary.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotAccountant = errors.New("only accountants can manage client assignments")
	ErrNotClient     = errors.New("target user is not client-role")
	ErrWrongPassword = errors.New("wrong password")
)

// UserService owns the manages relation, credentials and user lifecycle.
type UserService struct {
	DB         *gorm.DB
	BcryptCost int
}

func NewUserService(db *gorm.DB, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{DB: db, BcryptCost: bcryptCost}
}

// AssignClient adds a manages-edge from the principal to the target user.
// The principal must be accountant-role and the target client-role. Adding an
// existing edge is a no-op.
func (s *UserService) AssignClient(principal *models.User, targetID uint) error {
	if !principal.IsAccountant() {
		return ErrNotAccountant
	}
	var target models.User
	if err := s.DB.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !target.IsClient() {
		return ErrNotClient
	}
	var count int64
	if err := s.DB.Table("accountant_clients").
		Where("accountant_id = ? AND client_id = ?", principal.ID, target.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.DB.Model(principal).Association("Clients").Append(&target)
}

// RemoveClient removes the manages-edge to the target. Removing an edge that
// does not exist is not an error and leaves the relation unchanged.
func (s *UserService) RemoveClient(principal *models.User, targetID uint) error {
	if !principal.IsAccountant() {
		return ErrNotAccountant
	}
	return s.DB.Exec(
		"DELETE FROM accountant_clients WHERE accountant_id = ? AND client_id = ?",
		principal.ID, targetID).Error
}

// ChangePassword verifies the old credential before replacing it. On a wrong
// old password the stored hash is left untouched.
func (s *UserService) ChangePassword(principal *models.User, oldPassword, newPassword string) error {
	if bcrypt.CompareHashAndPassword([]byte(principal.Password), []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.BcryptCost)
	if err != nil {
		return err
	}
	return s.DB.Model(principal).Update("password", string(hash)).Error
}

// DeleteCascade removes a user visible to the principal together with
// everything hanging off it: manages-edges in both directions, comments on
// the user's invoices, comments the user authored elsewhere, the user's
// invoices and finally the user row. Runs in a single transaction.
func (s *UserService) DeleteCascade(principal *models.User, targetID uint) error {
	var target models.User
	if err := scope.Users(s.DB, principal).First(&target, "users.id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		owned := tx.Table("invoices").Select("id").Where("client_id = ?", target.ID)
		if err := tx.Where("invoice_id IN (?)", owned).Delete(&models.InvoiceComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", target.ID).Delete(&models.InvoiceComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", target.ID).Delete(&models.Invoice{}).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"DELETE FROM accountant_clients WHERE accountant_id = ? OR client_id = ?",
			target.ID, target.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, target.ID).Error
	})
}
