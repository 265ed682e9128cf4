package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/kcseed/internal/config"
	"github.com/dropDatabas3/kcseed/internal/keycloak"
	"github.com/dropDatabas3/kcseed/internal/metrics"
	"github.com/dropDatabas3/kcseed/internal/observability/logger"
	"github.com/dropDatabas3/kcseed/internal/provision"
	"github.com/dropDatabas3/kcseed/internal/report"
)

// version se pisa en build: -ldflags "-X main.version=v1.2.3"
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1 // algún alta/borrado/paso falló
	exitInvalid = 2 // flags o config inválidos; no se tocó la red
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	configPath  string
	envFile     string
	totalUsers  int
	batchSize   int
	outDir      string
	skipPurge   bool
	fakerSeed   int64
	logLevel    string
	metricsFile string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f := flags{
		configPath: envOr("KCSEED_CONFIG", "configs/kcseed.yaml"),
		envFile:    envOr("KCSEED_ENV_FILE", ".env"),
	}
	code := exitOK

	root := &cobra.Command{
		Use:   "kcseed",
		Short: "Provisiona realm, client y usuarios de prueba en Keycloak",
		Long: "Asegura que el realm y el client confidencial existan, borra los usuarios\n" +
			"del realm y crea usuarios sintéticos en batches. Cada alta queda en un CSV.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unexpected arguments %q", config.ErrInvalidConfig, args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			code = seed(ctx, cfg, stdout)
			return nil
		},
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	})

	fl := root.Flags()
	fl.StringVar(&f.configPath, "config", f.configPath, "Archivo YAML de config (env KCSEED_CONFIG); opcional")
	fl.StringVar(&f.envFile, "env-file", f.envFile, "Archivo dotenv a cargar antes de la config; opcional")
	fl.IntVar(&f.totalUsers, "total-users", 20, "Cantidad de usuarios a crear")
	fl.IntVar(&f.batchSize, "batch-size", 10, "Usuarios por batch")
	fl.StringVar(&f.outDir, "out-dir", "", "Directorio del CSV (default report.dir)")
	fl.BoolVar(&f.skipPurge, "skip-purge", false, "No borrar los usuarios existentes")
	fl.Int64Var(&f.fakerSeed, "seed", 0, "Semilla para los nombres (0 = aleatoria)")
	fl.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error (default log.level)")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Textfile de Prometheus a escribir al terminar")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Muestra la versión",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kcseed %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if config.IsInvalid(err) {
			return exitInvalid
		}
		return exitFailed
	}
	return code
}

// loadConfig: dotenv → YAML → env → flags (solo los que se pasaron) → Validate.
// Cualquier error acá es exit 2.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	changed := cmd.Flags().Changed

	if err := godotenv.Load(f.envFile); err != nil {
		if changed("env-file") || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: env file: %v", config.ErrInvalidConfig, err)
		}
	}

	path := f.configPath
	if !changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		if !config.IsInvalid(err) {
			err = fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		return nil, err
	}

	if changed("total-users") {
		cfg.Seed.TotalUsers = f.totalUsers
	}
	if changed("batch-size") {
		cfg.Seed.BatchSize = f.batchSize
	}
	if changed("out-dir") {
		cfg.Report.Dir = f.outDir
	}
	if changed("skip-purge") && f.skipPurge {
		cfg.Purge.Enabled = false
	}
	if changed("seed") {
		cfg.Seed.FakerSeed = f.fakerSeed
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return nil, fmt.Errorf("%w: log.level must be debug|info|warn|error, got %q", config.ErrInvalidConfig, cfg.Log.Level)
	}
	return cfg, nil
}

// seed arma las dependencias, corre los pasos y devuelve el exit code.
func seed(ctx context.Context, cfg *config.Config, stdout io.Writer) int {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "kcseed",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L().With(logger.Layer("cmd"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rec metrics.Recorder = metrics.Nop{}
	var prom *metrics.Prom
	if cfg.Metrics.File != "" {
		prom = metrics.New()
		rec = prom
	}

	hc := &http.Client{Timeout: cfg.Keycloak.Timeout}
	tokens := keycloak.NewTokenSource(keycloak.TokenConfig{
		BaseURL:    cfg.Keycloak.BaseURL,
		Realm:      cfg.Keycloak.AdminRealm,
		ClientID:   cfg.Keycloak.AdminClientID,
		Username:   cfg.Keycloak.AdminUsername,
		Password:   cfg.Keycloak.AdminPassword,
		Discovery:  cfg.Keycloak.Discovery,
		Skew:       cfg.Keycloak.TokenSkew,
		HTTPClient: hc,
		Metrics:    rec,
	})
	api, err := keycloak.New(keycloak.Options{
		BaseURL:    cfg.Keycloak.BaseURL,
		HTTPClient: hc,
		Tokens:     tokens,
		Metrics:    rec,
	})
	if err != nil {
		log.Error("cannot build admin client", logger.Err(err))
		return exitInvalid
	}
	runner, err := provision.NewRunner(provision.Options{
		Config:  cfg,
		API:     api,
		Auth:    tokens,
		Metrics: rec,
	})
	if err != nil {
		log.Error("cannot build runner", logger.Err(err))
		if config.IsInvalid(err) {
			return exitInvalid
		}
		return exitFailed
	}

	printBanner(stdout, cfg, runner.RunID())
	res := runner.Run(logger.ToContext(ctx, log))
	printSummary(stdout, res)

	code := exitOK
	if res.Failed() {
		code = exitFailed
	}

	if p := cfg.Report.SummaryFile; p != "" {
		if err := report.WriteSummary(p, res.Summary()); err != nil {
			log.Error("writing run summary failed", logger.String("path", p), logger.Err(err))
			code = exitFailed
		}
	}
	if prom != nil {
		if err := prom.WriteTextfile(cfg.Metrics.File, time.Now()); err != nil {
			log.Error("writing metrics textfile failed", logger.String("path", cfg.Metrics.File), logger.Err(err))
			code = exitFailed
		}
	}
	if ctx.Err() != nil {
		log.Warn("run interrupted by signal")
	}
	return code
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
