package contracts

import (
	"context"
	"path"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/angelmondragon/tabletloan-backend/pkg/types"
)

// Form fields naming the device and the borrower.
const (
	fieldAssetTag  = "ITNr"
	fieldFirstName = "SuSVorn"
	fieldLastName  = "SuSNachn"
)

type match struct {
	assignment *models.Assignment
	rule       enums.ContractMatch
}

// matchDocument applies the rules in order: form fields, then filename.
// A nil match means the contract stays unmatched.
func matchDocument(ctx context.Context, repo Repository, doc Document) (*match, error) {
	if tag, first, last, ok := formIdentity(doc.Fields); ok {
		rows, err := repo.FindActiveByTagAndName(ctx, tag, first, last)
		if err != nil {
			return nil, err
		}
		if len(rows) == 1 {
			return &match{assignment: &rows[0], rule: enums.ContractMatchField}, nil
		}
	}

	if first, last, ok := filenameIdentity(doc.Filename); ok {
		rows, err := repo.FindActiveByName(ctx, first, last)
		if err != nil {
			return nil, err
		}
		if len(rows) == 1 {
			return &match{assignment: &rows[0], rule: enums.ContractMatchFilename}, nil
		}
	}
	return nil, nil
}

func formIdentity(fields types.FieldMap) (tag, first, last string, ok bool) {
	tag, hasTag := fields.Get(fieldAssetTag)
	first, hasFirst := fields.Get(fieldFirstName)
	last, hasLast := fields.Get(fieldLastName)
	return tag, first, last, hasTag && hasFirst && hasLast
}

// filenameIdentity reads "First_Last.pdf" style names.
func filenameIdentity(filename string) (first, last string, ok bool) {
	base := baseName(filename)
	stem := strings.TrimSuffix(base, path.Ext(base))
	parts := strings.Split(stem, "_")
	if len(parts) != 2 {
		return "", "", false
	}
	first = strings.TrimSpace(parts[0])
	last = strings.TrimSpace(parts[1])
	return first, last, first != "" && last != ""
}

func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
