package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Payload shaped like the checkout request
type testCheckoutRequest struct {
	CustomerName string  `json:"customer_name" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
}

func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing required fields are rejected", prop.ForAll(
		func(includeName bool, includeAmount bool) bool {
			reqMap := make(map[string]interface{})

			if includeName {
				reqMap["customer_name"] = "Ana"
			}
			if includeAmount {
				reqMap["amount"] = 25.5
			}

			allFieldsPresent := includeName && includeAmount

			reqBody, _ := json.Marshal(reqMap)
			req := httptest.NewRequest("POST", "/test", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")

			var testReq testCheckoutRequest
			err := DecodeAndValidate(req, &testReq)

			if allFieldsPresent {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_NonPositiveAmountsAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("amounts at or below zero fail validation", prop.ForAll(
		func(amount float64) bool {
			reqMap := map[string]interface{}{
				"customer_name": "Ana",
				"amount":        amount,
			}

			reqBody, _ := json.Marshal(reqMap)
			req := httptest.NewRequest("POST", "/test", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")

			var testReq testCheckoutRequest
			err := DecodeAndValidate(req, &testReq)

			if amount > 0 {
				return err == nil
			}
			return err != nil
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidationErrorsAreFormatted(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("validation errors include field information", prop.ForAll(
		func() bool {
			reqMap := map[string]interface{}{
				"customer_name": "Ana",
				"amount":        10.0,
				"currency":      "COLOMBIAN_PESOS", // Not a 3-letter code
			}

			reqBody, _ := json.Marshal(reqMap)
			req := httptest.NewRequest("POST", "/test", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")

			var testReq testCheckoutRequest
			err := DecodeAndValidate(req, &testReq)
			if err == nil {
				return false
			}

			validationErrors := FormatValidationErrors(err)
			if len(validationErrors) == 0 {
				return false
			}

			for _, ve := range validationErrors {
				if ve.Field == "" || ve.Message == "" {
					return false
				}
			}

			return true
		},
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDecodeAndValidateRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	var testReq testCheckoutRequest
	if err := DecodeAndValidate(req, &testReq); err == nil {
		t.Fatal("expected decode error for malformed JSON")
	}
}
