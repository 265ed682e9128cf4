package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP (admin API)
// =================================================================================

// RequestID crea un campo para el X-Request-ID enviado al servidor.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración de una llamada o pausa.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// RunID identifica una ejecución completa del seeding.
func RunID(v string) zap.Field {
	return zap.String("run_id", v)
}

// Realm crea un campo para el realm destino.
func Realm(v string) zap.Field {
	return zap.String("realm", v)
}

// ClientID crea un campo para el clientId OAuth.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// UserID crea un campo para el id (UUID) asignado por el servidor.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Username crea un campo para el username.
func Username(v string) zap.Field {
	return zap.String("username", v)
}

// Email crea un campo para el email (usar con cuidado en prod).
func Email(v string) zap.Field {
	return zap.String("email", v)
}

// Seq crea un campo para el número de secuencia global (1-based).
func Seq(v int) zap.Field {
	return zap.Int("seq", v)
}

// Batch crea un campo para el número de batch (1-based).
func Batch(v int) zap.Field {
	return zap.Int("batch", v)
}

// Step crea un campo para el paso del seeding (realm, client, purge, seed).
func Step(v string) zap.Field {
	return zap.String("step", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (cmd, provision, keycloak).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
