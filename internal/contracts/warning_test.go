package contracts

import (
	"testing"

	"github.com/angelmondragon/tabletloan-backend/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateWarning(t *testing.T) {
	cases := []struct {
		name   string
		fields types.FieldMap
		want   bool
	}{
		{
			name:   "compliance equals acknowledgement",
			fields: types.FieldMap{"usageCompliance": "true", "usageAcknowledgement": "true", "issuedNew": "true", "issuedUsed": "false"},
			want:   true,
		},
		{
			name:   "empty map never warns",
			fields: types.FieldMap{},
			want:   false,
		},
		{
			name:   "nil map never warns",
			fields: nil,
			want:   false,
		},
		{
			name:   "consistent pdf form",
			fields: types.FieldMap{"NutzungEinhaltung": "/Off", "NutzungKenntnisnahme": "gelesen", "ausgabeNeu": "/Yes", "ausgabeGebraucht": "/Off"},
			want:   false,
		},
		{
			name:   "both issue boxes ticked",
			fields: types.FieldMap{"NutzungEinhaltung": "/Yes", "ausgabeNeu": "/Yes", "ausgabeGebraucht": "/Yes"},
			want:   true,
		},
		{
			name:   "neither issue box ticked",
			fields: types.FieldMap{"NutzungEinhaltung": "/Yes", "ausgabeNeu": "/Off", "ausgabeGebraucht": "/Off"},
			want:   true,
		},
		{
			name:   "blank acknowledgement counts as unset",
			fields: types.FieldMap{"NutzungEinhaltung": "/Yes", "NutzungKenntnisnahme": "  ", "ausgabeGebraucht": "on"},
			want:   false,
		},
		{
			name:   "unrelated fields only",
			fields: types.FieldMap{"ITNr": "IT-1"},
			want:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateWarning(tc.fields))
		})
	}
}
