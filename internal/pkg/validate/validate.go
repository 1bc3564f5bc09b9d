package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the process-wide validator. Request DTOs in internal/domain
// carry the validate tags; handlers call Struct before touching a
// service.
var v = validator.New()

// Struct checks the validate tags on the given request struct. The
// returned error joins one readable message per failed field, suitable
// for a 400 response body.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
