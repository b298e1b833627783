package persons

import (
	"strings"

	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/google/uuid"
)

// GuardianInput is the contact block of one guardian.
type GuardianInput struct {
	LastName   string `json:"last_name" validate:"max=128"`
	FirstName  string `json:"first_name" validate:"max=128"`
	Street     string `json:"street" validate:"max=256"`
	PostalCode string `json:"postal_code" validate:"max=16"`
	City       string `json:"city" validate:"max=128"`
}

// Input is the full attribute set of a person. First and last name are required.
type Input struct {
	ShortName  string        `json:"short_name" validate:"max=64"`
	FirstName  string        `json:"first_name" validate:"required,max=128"`
	LastName   string        `json:"last_name" validate:"required,max=128"`
	ClassName  string        `json:"class_name" validate:"max=32"`
	Street     string        `json:"street" validate:"max=256"`
	PostalCode string        `json:"postal_code" validate:"max=16"`
	City       string        `json:"city" validate:"max=128"`
	BirthDate  string        `json:"birth_date" validate:"max=32"`
	Guardian1  GuardianInput `json:"guardian1"`
	Guardian2  GuardianInput `json:"guardian2"`
}

// Key identifies a person during import: names, plus the class when known.
type Key struct {
	FirstName string
	LastName  string
	ClassName string
}

// NewKey trims the parts of a key.
func NewKey(first, last, class string) Key {
	return Key{
		FirstName: strings.TrimSpace(first),
		LastName:  strings.TrimSpace(last),
		ClassName: strings.TrimSpace(class),
	}
}

// Filter narrows List; names match by substring, class exactly.
type Filter struct {
	FirstName string
	LastName  string
	ClassName string
}

// DeleteResult reports what a person deletion cascaded into.
type DeleteResult struct {
	PersonID                  uuid.UUID `json:"person_id"`
	DissolvedActiveAssignment bool      `json:"dissolved_active_assignment"`
	AssignmentsDeleted        int64     `json:"assignments_deleted"`
	ContractsDeleted          int64     `json:"contracts_deleted"`
}

func (in Input) normalized() Input {
	trim := strings.TrimSpace
	g := func(gi GuardianInput) GuardianInput {
		return GuardianInput{
			LastName:   trim(gi.LastName),
			FirstName:  trim(gi.FirstName),
			Street:     trim(gi.Street),
			PostalCode: trim(gi.PostalCode),
			City:       trim(gi.City),
		}
	}
	return Input{
		ShortName:  trim(in.ShortName),
		FirstName:  trim(in.FirstName),
		LastName:   trim(in.LastName),
		ClassName:  trim(in.ClassName),
		Street:     trim(in.Street),
		PostalCode: trim(in.PostalCode),
		City:       trim(in.City),
		BirthDate:  trim(in.BirthDate),
		Guardian1:  g(in.Guardian1),
		Guardian2:  g(in.Guardian2),
	}
}

func (in Input) apply(p *models.Person) {
	p.ShortName = in.ShortName
	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.ClassName = in.ClassName
	p.Street = in.Street
	p.PostalCode = in.PostalCode
	p.City = in.City
	p.BirthDate = in.BirthDate
	p.Guardian1 = models.Guardian(in.Guardian1)
	p.Guardian2 = models.Guardian(in.Guardian2)
}

// merge overlays the non-blank values of in onto p; imports never blank out
// stored attributes.
func (in Input) merge(p *models.Person) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.ShortName, in.ShortName)
	set(&p.ClassName, in.ClassName)
	set(&p.Street, in.Street)
	set(&p.PostalCode, in.PostalCode)
	set(&p.City, in.City)
	set(&p.BirthDate, in.BirthDate)
	for _, pair := range []struct {
		dst *models.Guardian
		src GuardianInput
	}{{&p.Guardian1, in.Guardian1}, {&p.Guardian2, in.Guardian2}} {
		set(&pair.dst.LastName, pair.src.LastName)
		set(&pair.dst.FirstName, pair.src.FirstName)
		set(&pair.dst.Street, pair.src.Street)
		set(&pair.dst.PostalCode, pair.src.PostalCode)
		set(&pair.dst.City, pair.src.City)
	}
}
