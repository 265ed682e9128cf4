// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada paso del seeding puede llevar su propio logger
//     "scoped" (realm, step, run_id) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL o --log-level).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,
//	    Level: cfg.Log.Level,
//	})
//	defer logger.Sync()
//
// En los pasos (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("user created", logger.Username(u.Username))
package logger
