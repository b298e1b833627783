package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guardian holds the contact block of a legal guardian.
type Guardian struct {
	LastName   string `gorm:"column:last_name;type:text" json:"last_name"`
	FirstName  string `gorm:"column:first_name;type:text" json:"first_name"`
	Street     string `gorm:"column:street;type:text" json:"street"`
	PostalCode string `gorm:"column:postal_code;type:text" json:"postal_code"`
	City       string `gorm:"column:city;type:text" json:"city"`
}

// Person is a borrower. Names are not unique.
type Person struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ShortName           string     `gorm:"column:short_name;type:text" json:"short_name"`
	LastName            string     `gorm:"column:last_name;type:text;not null" json:"last_name"`
	FirstName           string     `gorm:"column:first_name;type:text;not null" json:"first_name"`
	ClassName           string     `gorm:"column:class_name;type:text" json:"class_name"`
	Street              string     `gorm:"column:street;type:text" json:"street"`
	PostalCode          string     `gorm:"column:postal_code;type:text" json:"postal_code"`
	City                string     `gorm:"column:city;type:text" json:"city"`
	BirthDate           string     `gorm:"column:birth_date;type:text" json:"birth_date"`
	Guardian1           Guardian   `gorm:"embedded;embeddedPrefix:guardian1_" json:"guardian1"`
	Guardian2           Guardian   `gorm:"embedded;embeddedPrefix:guardian2_" json:"guardian2"`
	CurrentAssignmentID *uuid.UUID `gorm:"column:current_assignment_id;type:uuid" json:"current_assignment_id,omitempty"`
	FirstNameKey        string     `gorm:"column:first_name_key;type:text;not null;default:''" json:"-"`
	LastNameKey         string     `gorm:"column:last_name_key;type:text;not null;default:''" json:"-"`
	ClassKey            string     `gorm:"column:class_key;type:text;not null;default:''" json:"-"`
	CreatedAt           *time.Time `gorm:"column:created_at" json:"created_at,omitempty"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Person) TableName() string { return "persons" }

// FullName renders "First Last", the form stored on assignments and contracts.
func (p Person) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// NameKey folds a name for matching. SQLite's LOWER only folds ASCII, so
// the folded forms are stored rather than computed in queries.
func NameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SetKeys refreshes the folded name columns from the names.
func (p *Person) SetKeys() {
	p.FirstNameKey = NameKey(p.FirstName)
	p.LastNameKey = NameKey(p.LastName)
	p.ClassKey = NameKey(p.ClassName)
}

func (p *Person) BeforeCreate(*gorm.DB) error {
	p.SetKeys()
	if err := ensureID(&p.ID); err != nil {
		return err
	}
	if p.CreatedAt == nil {
		now := time.Now().UTC()
		p.CreatedAt = &now
	}
	return nil
}
