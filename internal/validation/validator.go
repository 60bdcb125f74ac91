package validation

import (
	"reflect"
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// New returns a configured validator with the payment struct-level rules
// registered and json field names used in error reports.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterStructValidation(processPaymentStructValidation, ProcessPaymentRequest{})
	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})

	return v
}

// CleanCardNumber strips every whitespace character from a card number.
func CleanCardNumber(number string) string {
	return strings.Join(strings.Fields(number), "")
}

func processPaymentStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ProcessPaymentRequest)
	validatePaymentMethod(sl, req.PaymentMethod, req.CardDetails, req.PayerEmail)
}

func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)
	validatePaymentMethod(sl, req.PaymentMethod, req.CardDetails, req.PayerEmail)
}

// validatePaymentMethod checks the fields each method needs: card number
// (13-19 digits), CVC (3-4 digits) and MM/YY expiry for cards, a valid email
// for paypal.
func validatePaymentMethod(sl validatorv10.StructLevel, method string, card *CardDetails, payerEmail string) {
	switch method {
	case MethodCreditCard, MethodDebitCard:
		if card == nil || card.Number == "" || card.CVC == "" {
			sl.ReportError(card, "cardDetails", "CardDetails", "card_required", "")
			return
		}
		number := CleanCardNumber(card.Number)
		if len(number) < 13 || len(number) > 19 || !digitsPattern.MatchString(number) {
			sl.ReportError(card.Number, "cardDetails.number", "Number", "card_number", "")
		}
		if len(card.CVC) < 3 || len(card.CVC) > 4 || !digitsPattern.MatchString(card.CVC) {
			sl.ReportError(card.CVC, "cardDetails.cvc", "CVC", "cvc", "")
		}
		if !expiryPattern.MatchString(card.Expiry) {
			sl.ReportError(card.Expiry, "cardDetails.expiry", "Expiry", "expiry", "")
		}
	case MethodPayPal:
		if payerEmail == "" {
			sl.ReportError(payerEmail, "payerEmail", "PayerEmail", "payer_email_required", "")
			return
		}
		if err := sl.Validator().Var(payerEmail, "email"); err != nil {
			sl.ReportError(payerEmail, "payerEmail", "PayerEmail", "payer_email", "")
		}
	}
}
