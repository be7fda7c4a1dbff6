package validation

import (
	"testing"

	"github.com/psds-microservice/support-desk/internal/errs"
)

func TestAccountNumber(t *testing.T) {
	cases := map[string]bool{
		"1234567890":  true,
		"0000000001":  true,
		"123456789":   false,
		"12345678901": false,
		"12345a7890":  false,
		"+123456789":  false,
		"":            false,
	}
	for in, want := range cases {
		if got := AccountNumber(in); got != want {
			t.Fatalf("AccountNumber(%q)=%v; want %v", in, got, want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@B.Com "); got != "a@b.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}

type sample struct {
	Account string `validate:"required,account_number"`
	Email   string `validate:"required,email"`
}

func TestTranslate(t *testing.T) {
	err := Validator().Struct(sample{Account: "12", Email: "nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := errs.IsValidation(Translate(err, map[string]string{"Account": "account", "Email": "email"}))
	if !ok {
		t.Fatalf("Translate did not return ValidationError: %v", err)
	}
	if verr.Fields["account"] != "Account number must be exactly 10 digits." {
		t.Fatalf("account message = %q", verr.Fields["account"])
	}
	if verr.Fields["email"] != "Invalid email address." {
		t.Fatalf("email message = %q", verr.Fields["email"])
	}
}
