package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/kcseed/internal/metrics"
	"github.com/dropDatabas3/kcseed/internal/observability/logger"
)

const tokenCacheKey = "admin"

// TokenConfig configura el password grant del admin.
type TokenConfig struct {
	BaseURL  string
	Realm    string // realm del admin, normalmente master
	ClientID string // normalmente admin-cli (público, sin secret)
	Username string
	Password string

	// Discovery lee el token_endpoint de .well-known/openid-configuration
	// en vez de armar el path convencional.
	Discovery bool

	// Skew se resta al vencimiento para no usar un token a punto de expirar.
	Skew time.Duration

	HTTPClient *http.Client
	Metrics    metrics.Recorder
}

// TokenSource obtiene y cachea el token del admin. Un solo token se
// comparte entre todos los pasos; se vuelve a pedir cuando vence o cuando
// alguien llama Invalidate (un 401 del servidor).
type TokenSource struct {
	cfg   TokenConfig
	hc    *http.Client
	rec   metrics.Recorder
	cache *gocache.Cache
	group singleflight.Group

	mu       sync.Mutex
	tokenURL string
}

// NewTokenSource crea el TokenSource; no hace red hasta el primer Token().
func NewTokenSource(cfg TokenConfig) *TokenSource {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &TokenSource{
		cfg:   cfg,
		hc:    hc,
		rec:   rec,
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Token devuelve el token cacheado o pide uno nuevo. Pedidos concurrentes
// comparten un único request al token endpoint.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if v, ok := s.cache.Get(tokenCacheKey); ok {
		if tok, ok := v.(string); ok && tok != "" {
			return tok, nil
		}
	}
	v, err, _ := s.group.Do(tokenCacheKey, func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate descarta el token cacheado.
func (s *TokenSource) Invalidate() {
	s.cache.Delete(tokenCacheKey)
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	log := logger.From(ctx).With(logger.Component("keycloak.token"), logger.Realm(s.cfg.Realm))

	oc := &oauth2.Config{
		ClientID: s.cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.endpoint(ctx),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	start := time.Now()
	tok, err := oc.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, s.hc), s.cfg.Username, s.cfg.Password)
	if err != nil {
		s.rec.ObserveRequest("token", metrics.Code(retrieveStatus(err)), time.Since(start))
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	s.rec.ObserveRequest("token", metrics.Code(http.StatusOK), time.Since(start))

	exp := tok.Expiry
	if exp.IsZero() {
		exp = accessTokenExpiry(tok.AccessToken)
	}
	switch {
	case exp.IsZero():
		// sin vencimiento conocido: vive hasta que un 401 lo invalide
		s.cache.Set(tokenCacheKey, tok.AccessToken, gocache.NoExpiration)
	case time.Until(exp)-s.cfg.Skew > 0:
		s.cache.Set(tokenCacheKey, tok.AccessToken, time.Until(exp)-s.cfg.Skew)
	default:
		// vida más corta que el skew: se usa una vez y no se cachea
	}

	log.Debug("admin token acquired", logger.Any("expires_at", exp))
	return tok.AccessToken, nil
}

// endpoint resuelve (una vez) la URL del token endpoint.
func (s *TokenSource) endpoint(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenURL != "" {
		return s.tokenURL
	}

	issuer := s.cfg.BaseURL + "/realms/" + url.PathEscape(s.cfg.Realm)
	s.tokenURL = issuer + "/protocol/openid-connect/token"
	if !s.cfg.Discovery {
		return s.tokenURL
	}

	p, err := oidc.NewProvider(oidc.ClientContext(ctx, s.hc), issuer)
	if err != nil {
		logger.From(ctx).Warn("oidc discovery failed, using conventional token path",
			logger.Component("keycloak.token"),
			logger.String("issuer", issuer),
			logger.Err(err),
		)
		return s.tokenURL
	}
	if u := p.Endpoint().TokenURL; u != "" {
		s.tokenURL = u
	}
	return s.tokenURL
}

// accessTokenExpiry lee el claim exp sin verificar la firma: solo sirve
// para decidir cuándo pedir otro token, nunca para confiar en él.
func accessTokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func retrieveStatus(err error) int {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
