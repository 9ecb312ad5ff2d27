package httpapi

import (
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"call-screener/internal/routing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Lenient E.164-ish: optional +, digits with common separators, 3..20 digits overall.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{1,30}$`)

// maxCallbackHorizon bounds how far ahead a callback may be booked.
const maxCallbackHorizon = 366 * 24 * time.Hour

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the request rules used by binding tags to gin's validator.
// Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireName)
		for tag, fn := range map[string]validator.Func{
			"call_action":   validCallAction,
			"callback_time": validCallbackTime,
			"phone":         validPhone,
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}

// wireName reports fields by their json (or form) name in validation errors.
func wireName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validCallAction(fl validator.FieldLevel) bool {
	_, err := routing.ParseAction(fl.Field().String())
	return err == nil
}

// validCallbackTime rejects the zero time and anything beyond the booking horizon.
// A time already in the past is accepted; the overdue sweep expires it.
func validCallbackTime(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok || t.IsZero() {
		return false
	}
	return t.Before(time.Now().Add(maxCallbackHorizon))
}

func validPhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 3 && digits <= 20
}
