package middleware

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pcshop/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleLine struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Change    decimal.Decimal `json:"quantity_change" validate:"ne=0"`
}

type sampleRequest struct {
	Action string       `json:"action" validate:"required,oneof=import export"`
	Items  []sampleLine `json:"items" validate:"required,min=1,dive"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

func TestRegisterValidations_Decimal(t *testing.T) {
	v := newValidator()

	ok := sampleLine{
		ProductID: "6f1c1f3e-58a4-4c1b-9d55-0f7c4e6b9a11",
		Quantity:  decimal.NewFromInt(5),
		UnitPrice: decimal.Zero,
		Change:    decimal.NewFromInt(-2),
	}
	assert.NoError(t, v.Struct(ok))

	bad := ok
	bad.Quantity = decimal.Zero
	bad.UnitPrice = decimal.NewFromInt(-1)
	bad.Change = decimal.Zero
	err := v.Struct(bad)
	require.Error(t, err)

	resp := FormatValidationErrors(err, "req-1")
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	fields := map[string]string{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Must be greater than 0", fields["quantity"])
	assert.Equal(t, "Must be greater than or equal to 0", fields["unit_price"])
	assert.Equal(t, "Must not be 0", fields["quantity_change"])
}

func TestFormatValidationErrors_Messages(t *testing.T) {
	v := newValidator()

	err := v.Struct(sampleRequest{Action: "transfer"})
	require.Error(t, err)

	resp := FormatValidationErrors(err, "")
	fields := map[string]string{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Must be one of: import export", fields["action"])
	assert.Equal(t, "This field is required", fields["items"])
}

func TestFormatValidationErrors_NonValidationError(t *testing.T) {
	resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-2")

	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unexpected EOF")
	assert.Equal(t, "req-2", resp.Error.RequestID)
}
