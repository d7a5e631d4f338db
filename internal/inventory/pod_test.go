package inventory

import (
	"testing"

	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidatePODTypes(t *testing.T) {
	cases := []struct {
		fieldType string
		value     string
		valid     bool
	}{
		{"number", "12.5", true},
		{"number", "twelve", false},
		{"email", "a@example.com", true},
		{"email", "not-an-email", false},
		{"url", "https://cdn.example.com/a.png", true},
		{"image", "a.png", false},
		{"checkbox", "true", true},
		{"checkbox", "yes please", false},
		{"color", "#ff00aa", true},
		{"color", "red", false},
		{"signature", "anything goes", true},
	}

	for _, tc := range cases {
		fields := models.PODFields{{Name: "f", Label: "Field", Type: tc.fieldType}}
		err := ValidatePOD("Product", fields, models.PODData{{FieldName: "f", Value: tc.value}})
		if tc.valid {
			assert.NoError(t, err, "%s=%q", tc.fieldType, tc.value)
		} else {
			assert.Equal(t, apperr.CodePODFieldInvalid, apperr.CodeOf(err), "%s=%q", tc.fieldType, tc.value)
		}
	}
}

func TestValidatePODOptionalBlank(t *testing.T) {
	fields := models.PODFields{{Name: "note", Type: "number"}}
	assert.NoError(t, ValidatePOD("Product", fields, nil))
}

func TestValidatePODFallsBackToName(t *testing.T) {
	fields := models.PODFields{{Name: "initials", Type: "text", Required: true}}
	err := ValidatePOD("Ring", fields, nil)
	assert.ErrorContains(t, err, "initials is required for Ring")
}
