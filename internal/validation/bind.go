package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
)

var messages = map[string]string{
	"card_required":        "Card details are required for card payments",
	"card_number":          "Invalid card number length",
	"cvc":                  "Invalid CVC",
	"expiry":               "Invalid expiry date format. Use MM/YY",
	"payer_email_required": "Payer email is required for PayPal payments",
	"payer_email":          "Invalid email format",
}

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid request body",
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": Describe(err),
			"fields":  validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

// DecodeAndValidate is the RPC counterpart of BindAndValidate: it decodes a
// raw JSON payload and returns an apperr validation error instead of writing
// a response. An empty payload decodes as {}.
func DecodeAndValidate(payload []byte, out interface{}, v *validatorv10.Validate) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := v.Struct(out); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Message: Describe(err), Err: err}
	}
	return nil
}

// Describe turns validator errors into one human message.
func Describe(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, describeField(fe))
	}
	return strings.Join(parts, "; ")
}

func describeField(fe validatorv10.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	switch {
	case fe.Field() == "paymentMethod" && fe.Tag() == "oneof":
		return "Invalid payment method. Accepted methods: credit_card, debit_card, paypal"
	case fe.Tag() == "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case fe.Tag() == "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case fe.Tag() == "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case fe.Tag() == "email":
		return "Invalid email format"
	case fe.Tag() == "min" && fe.Kind() == reflect.String:
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case fe.Tag() == "max" && fe.Kind() == reflect.String:
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Namespace()] = describeField(fe)
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
