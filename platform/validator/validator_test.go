package validator

import "testing"

type signUp struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestMessagesUseJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Struct(signUp{Name: "Asha", Email: "not-an-email", Password: "123"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	msgs := Messages(err)
	if msgs["email"] != "must be a valid email address" {
		t.Fatalf("unexpected email message %q", msgs["email"])
	}
	if msgs["password"] != "must be at least 6 characters" {
		t.Fatalf("unexpected password message %q", msgs["password"])
	}
	if _, ok := msgs["name"]; ok {
		t.Fatal("valid field must not be reported")
	}
}

func TestMessagesIgnoresOtherErrors(t *testing.T) {
	if Messages(nil) != nil {
		t.Fatal("nil error should produce nil map")
	}
}
