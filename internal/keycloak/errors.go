package keycloak

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound: el recurso no existe (404).
	ErrNotFound = errors.New("not found")

	// ErrConflict: el recurso ya existe (409), ej. username duplicado.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized: el token fue rechazado (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuth: no se pudo obtener un token de admin.
	ErrAuth = errors.New("admin authentication failed")
)

// APIError es una respuesta no-2xx del admin API.
type APIError struct {
	Op      string
	Status  int
	Message string // errorMessage / error del body, si vino
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status=%d: %s", e.Op, e.Status, e.Detail())
}

// Detail es el mensaje del servidor o, si no hubo, el status en texto.
func (e *APIError) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// Is permite errors.Is(err, ErrNotFound) y compañía.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

func newAPIError(op string, status int, body []byte) *APIError {
	return &APIError{Op: op, Status: status, Message: serverMessage(body)}
}

// serverMessage extrae errorMessage, después error, de un body JSON.
// Body vacío o no-JSON => "".
func serverMessage(body []byte) string {
	var payload struct {
		ErrorMessage     string `json:"errorMessage"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	switch {
	case payload.ErrorMessage != "":
		return payload.ErrorMessage
	case payload.Error != "" && payload.ErrorDescription != "":
		return payload.Error + ": " + payload.ErrorDescription
	default:
		return payload.Error
	}
}

// ErrorDetail devuelve el texto que va a la columna Status del reporte.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}
	return strings.TrimSpace(err.Error())
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsAuth verifica si el error viene de no poder autenticarse como admin.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }
