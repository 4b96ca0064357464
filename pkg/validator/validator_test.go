package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	ProductID string `validate:"required"`
	Quantity  int    `validate:"required,gte=1,lte=99"`
}

func TestValidate_Success(t *testing.T) {
	s := testStruct{ProductID: "42", Quantity: 2}
	err := Validate(s)
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	s := testStruct{Quantity: 2}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "ProductID")
	assert.Equal(t, "is required", fields["ProductID"])
}

func TestValidate_OutOfRange(t *testing.T) {
	s := testStruct{ProductID: "42", Quantity: 200}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "Quantity")
	assert.Contains(t, fields["Quantity"], "99")
}

func TestValidationError_ErrorJoinsFields(t *testing.T) {
	err := Validate(testStruct{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	msg := valErr.Error()
	assert.Contains(t, msg, "ProductID")
	assert.Contains(t, msg, "Quantity")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ProductID":"42","Quantity":3}`))

	var s testStruct
	err := DecodeAndValidate(req, &s)
	require.NoError(t, err)
	assert.Equal(t, "42", s.ProductID)
	assert.Equal(t, 3, s.Quantity)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ProductID":`))

	var s testStruct
	err := DecodeAndValidate(req, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_FailsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ProductID":"42","Quantity":0}`))

	var s testStruct
	err := DecodeAndValidate(req, &s)
	require.Error(t, err)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
