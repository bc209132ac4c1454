package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	writeJSONStatus(w, errorResponse{Detail: detail}, statusCode)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var validationErr *chat.ValidationError
	var gatewayErr *llm.GatewayError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateRoom):
		return http.StatusConflict
	case errors.Is(err, llm.ErrProviderNotConfigured):
		return http.StatusInternalServerError
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	if statusCode >= http.StatusInternalServerError {
		s.log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", statusCode).
			Msg("request failed")
	}
	writeDetail(w, statusCode, err.Error())
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validationDetail renders the first failed rule of a request body.
func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("invalid %s: %s is required", fe.Field(), fe.Field())
	case "max":
		return fmt.Sprintf("invalid %s: must be %s characters or fewer", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("invalid %s: failed %s", fe.Field(), fe.Tag())
}
