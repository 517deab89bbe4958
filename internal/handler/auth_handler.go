package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"campus-gateway/internal/model"
	"campus-gateway/internal/service"
	"campus-gateway/pkg/apierror"
)

const maxAuthBodyBytes = 1 << 20

type authService interface {
	Login(ctx context.Context, email string, password string) (model.AuthResult, error)
	RegisterUser(ctx context.Context, in service.RegisterInput) (model.AuthResult, error)
}

// fieldMessages maps "field.tag" (or just "field") to the message returned for
// a failed rule.
type fieldMessages map[string]string

func (m fieldMessages) lookup(field string, tag string) string {
	if msg, ok := m[field+"."+tag]; ok {
		return msg
	}
	if msg, ok := m[field]; ok {
		return msg
	}
	return field + " is invalid"
}

var loginMessages = fieldMessages{
	"email":    "Please provide a valid email",
	"password": "Password is required",
}

var registerMessages = fieldMessages{
	"email":                      "Please provide a valid email",
	"password":                   "Password must be at least 6 characters long",
	"password.password_strength": "Password must contain at least one lowercase letter, one uppercase letter, and one number",
	"firstName":                  "First name must be between 2 and 50 characters",
	"lastName":                   "Last name must be between 2 and 50 characters",
	"role":                       "Role must be APPRENANT, ADMIN, or FORMATEUR",
}

type AuthHandler struct {
	service  authService
	validate *validator.Validate
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service, validate: newValidator()}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		return passwordStrong(fl.Field().String())
	})
	return v
}

func passwordStrong(password string) bool {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err, "Login failed")
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)

	if err := h.check(payload, loginMessages); err != nil {
		writeError(w, err, "Login failed")
		return
	}

	result, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err, "Login failed")
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"user":  result.User,
		"token": result.Token,
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err, "Registration failed")
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	payload.FirstName = strings.TrimSpace(payload.FirstName)
	payload.LastName = strings.TrimSpace(payload.LastName)

	if err := h.check(payload, registerMessages); err != nil {
		writeError(w, err, "Registration failed")
		return
	}

	result, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Role:      model.Role(payload.Role),
	})
	if err != nil {
		writeError(w, err, "Registration failed")
		return
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user":  result.User,
		"token": result.Token,
	})
}

func (h *AuthHandler) check(payload any, messages fieldMessages) error {
	err := h.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err
	}

	fields := make([]model.FieldError, 0, len(invalid))
	for _, fe := range invalid {
		fields = append(fields, model.FieldError{
			Field:   fe.Field(),
			Message: messages.lookup(fe.Field(), fe.Tag()),
		})
	}
	return apierror.Validation(fields)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.New(apierror.KindValidation, "Invalid JSON body", http.StatusBadRequest)
	}
	return nil
}
