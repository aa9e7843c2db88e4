package service

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/layer-3/bazaar/core"
)

// PasswordSignupRequest registers an account with a password.
type PasswordSignupRequest struct {
	Username string    `json:"username" validate:"required,max=64"`
	Email    string    `json:"email" validate:"required,email,max=254"`
	Password string    `json:"password" validate:"required,min=6,maxbytes=72"`
	Role     core.Role `json:"role" validate:"omitempty,oneof=buyer seller"`
}

// PasswordLoginRequest authenticates with email and password. Role is optional.
type PasswordLoginRequest struct {
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=6,maxbytes=72"`
	Role     core.Role `json:"role" validate:"omitempty,oneof=buyer seller"`
}

// WalletLoginRequest proves control of a registered wallet.
type WalletLoginRequest struct {
	Address   string    `json:"address" validate:"required"`
	Signature string    `json:"signature" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Role      core.Role `json:"role" validate:"required,oneof=buyer seller"`
}

// WalletSignupRequest promotes a challenged wallet to a registered account.
type WalletSignupRequest struct {
	Address   string    `json:"address" validate:"required"`
	Signature string    `json:"signature" validate:"required"`
	Username  string    `json:"username" validate:"required,max=64"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Role      core.Role `json:"role" validate:"required,oneof=buyer seller"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// bcrypt caps input at 72 bytes, not characters
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= limit
	})
	return v
}

// check runs struct validation and reports failures as core.ErrValidation.
func (s *AuthService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid " + fe.Field()
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
