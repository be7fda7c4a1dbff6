// Package validation holds the shared validator used by gin form binding and by the services.
package validation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/psds-microservice/support-desk/internal/errs"
)

var (
	accountNumberRe = regexp.MustCompile(`^[0-9]{10}$`)

	once     sync.Once
	instance *validator.Validate
)

// AccountNumber reports whether s is exactly ten ASCII digits.
func AccountNumber(s string) bool { return accountNumberRe.MatchString(s) }

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func register(v *validator.Validate) {
	_ = v.RegisterValidation("account_number", func(fl validator.FieldLevel) bool {
		return AccountNumber(fl.Field().String())
	})
}

// Validator returns the process-wide validator with custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		register(instance)
	})
	return instance
}

// RegisterGin adds the custom tags to gin's binding validator.
func RegisterGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		register(v)
	}
}

var messages = map[string]string{
	"required":       "This field is required.",
	"email":          "Invalid email address.",
	"account_number": "Account number must be exactly 10 digits.",
	"oneof":          "Not a valid choice.",
	"max":            "Value is too long.",
	"len":            "Invalid length.",
}

// Translate converts validator errors into a ValidationError keyed by json field name.
// Any other error is returned unchanged.
func Translate(err error, names map[string]string) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &errs.ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		if n, ok := names[field]; ok {
			field = n
		}
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "Invalid value."
		}
		out.Add(field, msg)
	}
	return out
}
