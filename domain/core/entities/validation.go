package entities

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateNode checks the structural fields every node needs.
func ValidateNode(n Node) error {
	return structural(validate.Struct(n), "node")
}

// ValidateEdge checks the structural fields every edge needs.
func ValidateEdge(e Edge) error {
	return structural(validate.Struct(e), "edge")
}

func structural(err error, payload string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return pkgerrors.NewMissingFieldError(verrs[0].Field(), payload)
	}
	return pkgerrors.NewValidationError(err.Error())
}
