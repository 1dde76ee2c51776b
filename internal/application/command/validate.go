// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand runs struct tags and maps failures to a validation error
// listing field=tag pairs.
func validateCommand(op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s=%s", fe.Field(), fe.Tag()))
	}
	return shared.NewDomainError("command", op, shared.ErrValidation, "invalid fields: "+strings.Join(fields, ", "))
}
