package authkit

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterUserMessage carries the registration payload into the
// orchestrator.
type RegisterUserMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone_number"`
	Locale   string `json:"locale"`
	Units    string `json:"units"`
	// UseDeterministicID derives the identity id from the email, for
	// tenants that pre-provision accounts.
	UseDeterministicID bool `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&e.Nickname, validation.Length(0, 100)),
	)
}
