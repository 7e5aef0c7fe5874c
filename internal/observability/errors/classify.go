package errors

import (
	goerrors "errors"
	"reflect"
	"strconv"
	"strings"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
)

// Classify returns a normalized error class suitable for tagging metrics/logs.
// AppErrors classify by code ("network", "storage", "request_4xx", ...). Anything
// else is unwrapped to the innermost concrete type and converted to snake_case-ish.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) && appErr.Code != "" {
		if appErr.Code == apperrors.ErrCodeRequest && appErr.Status > 0 {
			return "request_" + strconv.Itoa(appErr.Status/100) + "xx"
		}
		return string(appErr.Code)
	}

	// Unwrap to the innermost error for better signal.
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
