package validator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/obex-alerts/internal/model"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

// New returns a validator with the custom alert rules registered.
func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v)
	return &structValidator{v: v}
}

func (s *structValidator) Validate(obj interface{}) error {
	if err := s.v.Struct(obj); err != nil {
		return describe(err)
	}
	return nil
}

var ginOnce sync.Once

// RegisterGin installs the custom rules on gin's default binding engine so
// `binding:"alert_type"` works in request structs.
func RegisterGin() {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			mustRegister(v)
		}
	})
}

func mustRegister(v *validator.Validate) {
	if err := v.RegisterValidation("alert_type", validateAlertType); err != nil {
		panic(fmt.Sprintf("register alert_type validation: %v", err))
	}
}

func validateAlertType(fl validator.FieldLevel) bool {
	switch val := fl.Field().Interface().(type) {
	case model.AlertType:
		return val.Valid()
	case string:
		return model.AlertType(val).Valid()
	default:
		return false
	}
}

// describe flattens validator errors into one readable message.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "alert_type":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a known alert type", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
