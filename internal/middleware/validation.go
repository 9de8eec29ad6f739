package middleware

import (
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/carebridge/booking-api/internal/model"
)

// RegisterValidators installs the domain validation tags on gin's binding
// engine. Called once at router construction.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// "clock" accepts provider-local wall-clock strings like "07:00".
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := model.ParseClock(fl.Field().String())
		return err == nil
	})

	// "weekday" accepts English weekday names ("Monday").
	v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		for d := time.Sunday; d <= time.Saturday; d++ {
			if d.String() == name {
				return true
			}
		}
		return false
	})

	// Report errors against json field names, not Go struct fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}
