package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mapleleafu/cardarena/arena-backend/models"
	"github.com/mapleleafu/cardarena/arena-backend/pkg/responses"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance. Field names in error
// messages use the json tag so clients see the names they sent.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Decode unmarshals msg into T and validates it. Every failure is returned as
// a recoverable responses.BadRequestError.
func Decode[T any](msg models.Inbound) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Raw, &out); err != nil {
		return out, responses.BadRequestError{Msg: "malformed message"}
	}
	if err := Validator().Struct(out); err != nil {
		return out, responses.BadRequestError{Msg: describe(err)}
	}
	return out, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid message"
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("field %q failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("field %q failed %s", fe.Field(), fe.Tag())
}
