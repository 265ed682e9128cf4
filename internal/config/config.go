package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig envuelve cualquier problema de validación.
// cmd/kcseed lo mapea a exit code 2.
var ErrInvalidConfig = errors.New("invalid config")

// Políticas ante un username duplicado (HTTP 409 al crear).
const (
	OnConflictFail = "fail"
	OnConflictSkip = "skip"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env" env:"APP_ENV"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`

	// Servidor de identidad y credenciales del admin (realm master por default).
	Keycloak struct {
		BaseURL       string        `yaml:"base_url" env:"KEYCLOAK_URL"`
		AdminRealm    string        `yaml:"admin_realm" env:"KEYCLOAK_ADMIN_REALM"`
		AdminClientID string        `yaml:"admin_client_id" env:"KEYCLOAK_ADMIN_CLIENT_ID"`
		AdminUsername string        `yaml:"admin_username" env:"KEYCLOAK_ADMIN_USERNAME"`
		AdminPassword string        `yaml:"admin_password" env:"KEYCLOAK_ADMIN_PASSWORD"`
		Discovery     bool          `yaml:"discovery" env:"KEYCLOAK_DISCOVERY"`
		Timeout       time.Duration `yaml:"timeout" env:"KEYCLOAK_TIMEOUT"`
		TokenSkew     time.Duration `yaml:"token_skew" env:"KEYCLOAK_TOKEN_SKEW"`
	} `yaml:"keycloak"`

	Realm struct {
		Name                   string `yaml:"name" env:"SEED_REALM"`
		DisplayName            string `yaml:"display_name" env:"SEED_REALM_DISPLAY_NAME"`
		RegistrationAllowed    bool   `yaml:"registration_allowed" env:"SEED_REALM_REGISTRATION_ALLOWED"`
		LoginWithEmailAllowed  bool   `yaml:"login_with_email_allowed" env:"SEED_REALM_LOGIN_WITH_EMAIL"`
		DuplicateEmailsAllowed bool   `yaml:"duplicate_emails_allowed" env:"SEED_REALM_DUPLICATE_EMAILS"`
	} `yaml:"realm"`

	// Cliente confidencial que se asegura dentro del realm.
	Client struct {
		ID                        string   `yaml:"id" env:"SEED_CLIENT_ID"`
		Secret                    string   `yaml:"secret" env:"SEED_CLIENT_SECRET"`
		RedirectURIs              []string `yaml:"redirect_uris" env:"SEED_CLIENT_REDIRECT_URIS"`
		WebOrigins                []string `yaml:"web_origins" env:"SEED_CLIENT_WEB_ORIGINS"`
		StandardFlowEnabled       bool     `yaml:"standard_flow_enabled" env:"SEED_CLIENT_STANDARD_FLOW"`
		DirectAccessGrantsEnabled bool     `yaml:"direct_access_grants_enabled" env:"SEED_CLIENT_DIRECT_ACCESS_GRANTS"`
		ServiceAccountsEnabled    bool     `yaml:"service_accounts_enabled" env:"SEED_CLIENT_SERVICE_ACCOUNTS"`
	} `yaml:"client"`

	Seed struct {
		TotalUsers  int           `yaml:"total_users" env:"SEED_TOTAL_USERS"`
		BatchSize   int           `yaml:"batch_size" env:"SEED_BATCH_SIZE"`
		Password    string        `yaml:"password" env:"SEED_USER_PASSWORD"`
		EmailDomain string        `yaml:"email_domain" env:"SEED_EMAIL_DOMAIN"`
		PauseMin    time.Duration `yaml:"pause_min" env:"SEED_PAUSE_MIN"`
		PauseMax    time.Duration `yaml:"pause_max" env:"SEED_PAUSE_MAX"`
		// 0 = sin límite
		RequestsPerSecond float64 `yaml:"requests_per_second" env:"SEED_RPS"`
		// 0 = nombres aleatorios en cada corrida
		FakerSeed  int64  `yaml:"faker_seed" env:"SEED_FAKER_SEED"`
		OnConflict string `yaml:"on_conflict" env:"SEED_ON_CONFLICT"` // fail | skip
	} `yaml:"seed"`

	Purge struct {
		Enabled  bool `yaml:"enabled" env:"SEED_PURGE"`
		MaxUsers int  `yaml:"max_users" env:"SEED_PURGE_MAX_USERS"`
	} `yaml:"purge"`

	Report struct {
		Dir         string `yaml:"dir" env:"SEED_REPORT_DIR"`
		SummaryFile string `yaml:"summary_file" env:"SEED_SUMMARY_FILE"`
	} `yaml:"report"`

	Metrics struct {
		// textfile para node_exporter; vacío = no se escribe
		File string `yaml:"file" env:"SEED_METRICS_FILE"`
	} `yaml:"metrics"`
}

// Default devuelve la configuración con la que corría el script original
// contra un Keycloak local.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.Log.Level = "info"

	c.Keycloak.BaseURL = "http://localhost:7077"
	c.Keycloak.AdminRealm = "master"
	c.Keycloak.AdminClientID = "admin-cli"
	c.Keycloak.AdminUsername = "admin"
	c.Keycloak.AdminPassword = "admin123"
	c.Keycloak.Timeout = 30 * time.Second
	c.Keycloak.TokenSkew = 30 * time.Second

	c.Realm.Name = "superset"
	c.Realm.DisplayName = "Superset Realm"
	c.Realm.LoginWithEmailAllowed = true

	c.Client.ID = "dashboard"
	c.Client.Secret = "rahasia123"
	c.Client.RedirectURIs = []string{"http://localhost:8088/*", "http://localhost:*"}
	c.Client.WebOrigins = []string{"+"}
	c.Client.StandardFlowEnabled = true
	c.Client.DirectAccessGrantsEnabled = true
	c.Client.ServiceAccountsEnabled = true

	c.Seed.TotalUsers = 20
	c.Seed.BatchSize = 10
	c.Seed.Password = "Pusilkom123"
	c.Seed.EmailDomain = "example.com"
	c.Seed.PauseMin = 5 * time.Second
	c.Seed.PauseMax = 10 * time.Second
	c.Seed.OnConflict = OnConflictFail

	c.Purge.Enabled = true
	c.Report.Dir = "."
	return &c
}

// Load arma la config en capas: defaults → YAML (si path != "") → env.
// No valida: cmd/kcseed aplica flags encima y después llama Validate.
func Load(path string) (*Config, error) {
	c := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	c.normalize()
	return c, nil
}

// applyEnvOverrides: pisa YAML/defaults con variables de entorno.
// Las variables no seteadas no tocan el valor previo.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("%w: parse env: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.App.Env = strings.ToLower(strings.TrimSpace(c.App.Env))
	c.Keycloak.BaseURL = strings.TrimRight(strings.TrimSpace(c.Keycloak.BaseURL), "/")
	c.Seed.OnConflict = strings.ToLower(strings.TrimSpace(c.Seed.OnConflict))
	c.Seed.EmailDomain = strings.TrimPrefix(strings.TrimSpace(c.Seed.EmailDomain), "@")
}

// Validate junta todos los problemas en un solo error envuelto en ErrInvalidConfig.
// Rechaza conteos no positivos antes de tocar la red.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if u, err := url.Parse(c.Keycloak.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		add("keycloak.base_url must be an absolute http(s) URL, got %q", c.Keycloak.BaseURL)
	}
	if c.Keycloak.AdminRealm == "" {
		add("keycloak.admin_realm is required")
	}
	if c.Keycloak.AdminClientID == "" {
		add("keycloak.admin_client_id is required")
	}
	if c.Keycloak.AdminUsername == "" {
		add("keycloak.admin_username is required")
	}
	if c.Keycloak.Timeout <= 0 {
		add("keycloak.timeout must be > 0")
	}
	if c.Keycloak.TokenSkew < 0 {
		add("keycloak.token_skew must be >= 0")
	}
	if strings.TrimSpace(c.Realm.Name) == "" {
		add("realm.name is required")
	}
	if strings.TrimSpace(c.Client.ID) == "" {
		add("client.id is required")
	}
	if c.Seed.TotalUsers <= 0 {
		add("seed.total_users must be > 0, got %d", c.Seed.TotalUsers)
	}
	if c.Seed.BatchSize <= 0 {
		add("seed.batch_size must be > 0, got %d", c.Seed.BatchSize)
	}
	if c.Seed.EmailDomain == "" {
		add("seed.email_domain is required")
	}
	if c.Seed.PauseMin < 0 || c.Seed.PauseMax < 0 {
		add("seed.pause_min/pause_max must be >= 0")
	}
	if c.Seed.PauseMax < c.Seed.PauseMin {
		add("seed.pause_max (%s) must be >= seed.pause_min (%s)", c.Seed.PauseMax, c.Seed.PauseMin)
	}
	if c.Seed.RequestsPerSecond < 0 {
		add("seed.requests_per_second must be >= 0")
	}
	switch c.Seed.OnConflict {
	case OnConflictFail, OnConflictSkip:
	default:
		add("seed.on_conflict must be %q or %q, got %q", OnConflictFail, OnConflictSkip, c.Seed.OnConflict)
	}
	if c.Purge.MaxUsers < 0 {
		add("purge.max_users must be >= 0")
	}
	if strings.TrimSpace(c.Report.Dir) == "" {
		add("report.dir is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// IsInvalid verifica si el error es de configuración/entrada inválida.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
