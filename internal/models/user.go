package models

import "time"

// User roles. The manages relation below only ever links an accountant to
// client-role users; that rule is enforced when edges are created, not by the
// schema.
const (
	RoleClient     = "client"
	RoleAccountant = "accountant"
)

// User & auth related models
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"unique;not null;index" json:"email"`
	Password    string `gorm:"not null" json:"-"` // bcrypt hash
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Role        string `gorm:"not null;index" json:"role"`
	PhoneNumber string `json:"phone_number"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	TaxID       string `json:"tax_id"`
	// Clients holds the directed manages-edges for accountant-role users.
	Clients   []User    `gorm:"many2many:accountant_clients;joinForeignKey:AccountantID;joinReferences:ClientID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsClient() bool     { return u.Role == RoleClient }
func (u *User) IsAccountant() bool { return u.Role == RoleAccountant }

// FullName joins the name fields for display purposes.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
