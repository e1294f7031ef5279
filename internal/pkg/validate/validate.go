package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so messages match request payloads.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates value and returns an invalid-argument error naming every
// failing field.
func Struct(value any) error {
	if err := v.Struct(value); err != nil {
		return toInvalid(err)
	}
	return nil
}

func Var(value any, tag string) error {
	if err := v.Var(value, tag); err != nil {
		return toInvalid(err)
	}
	return nil
}

func toInvalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Invalid(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return apperr.Invalid(strings.Join(msgs, "; "))
}
