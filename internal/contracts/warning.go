package contracts

import (
	"strings"

	"github.com/angelmondragon/tabletloan-backend/pkg/types"
)

// Form field names of the loan agreement, with the English aliases accepted
// from JSON clients.
var (
	usageComplianceFields      = []string{"NutzungEinhaltung", "usageCompliance"}
	usageAcknowledgementFields = []string{"NutzungKenntnisnahme", "usageAcknowledgement"}
	issuedNewFields            = []string{"ausgabeNeu", "issuedNew"}
	issuedUsedFields           = []string{"ausgabeGebraucht", "issuedUsed"}
)

// EvaluateWarning flags a contract whose form was filled inconsistently:
// compliance and acknowledgement agree, or new and used agree. A contract
// without extracted fields never carries a warning.
func EvaluateWarning(fields types.FieldMap) bool {
	if len(fields) == 0 {
		return false
	}
	compliance := checked(fields, usageComplianceFields)
	acknowledgement := filled(fields, usageAcknowledgementFields)
	issuedNew := checked(fields, issuedNewFields)
	issuedUsed := checked(fields, issuedUsedFields)
	return compliance == acknowledgement || issuedNew == issuedUsed
}

func checked(fields types.FieldMap, names []string) bool {
	for _, name := range names {
		if v, ok := fields.Get(name); ok && affirmative(v) {
			return true
		}
	}
	return false
}

func filled(fields types.FieldMap, names []string) bool {
	for _, name := range names {
		if _, ok := fields.Get(name); ok {
			return true
		}
	}
	return false
}

// affirmative accepts the PDF checkbox export value and common JSON spellings.
func affirmative(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "/yes", "yes", "true", "on", "1":
		return true
	}
	return false
}
