package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/kcseed/internal/metrics"
	"github.com/dropDatabas3/kcseed/internal/observability/logger"
)

// maxBody acota lo que se lee de una respuesta (listas de users incluidas).
const maxBody = 32 << 20

// TokenProvider entrega el bearer token del admin.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Options configura el Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenProvider
	Metrics    metrics.Recorder
}

// Client habla con /admin/realms/... usando el token del TokenProvider.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	rec     metrics.Recorder
}

// New crea el cliente. Tokens es obligatorio.
func New(opts Options) (*Client, error) {
	if opts.Tokens == nil {
		return nil, errors.New("keycloak: token provider is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, errors.New("keycloak: base url is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Client{baseURL: base, http: hc, tokens: opts.Tokens, rec: rec}, nil
}

type request struct {
	op     string // label para métricas/errores: get_realm, create_user...
	method string
	path   string
	query  url.Values
	body   any
	out    any
}

type response struct {
	status int
	header http.Header
}

func (c *Client) do(ctx context.Context, r request) (response, error) {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return response{}, fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		status, header, body, err := c.send(ctx, r, payload)
		if err != nil {
			return response{}, err
		}
		// 401 = señal de expiración: nuevo token y un solo reenvío
		if status == http.StatusUnauthorized && attempt == 0 {
			logger.From(ctx).Debug("admin token rejected, refreshing",
				logger.Op(r.op), logger.Path(r.path))
			c.tokens.Invalidate()
			continue
		}
		resp := response{status: status, header: header}
		if status/100 != 2 {
			return resp, newAPIError(r.op, status, body)
		}
		if r.out != nil && len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, r.out); err != nil {
				return resp, fmt.Errorf("%s: decode response: %w", r.op, err)
			}
		}
		return resp, nil
	}
}

func (c *Client) send(ctx context.Context, r request, payload []byte) (int, http.Header, []byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s: %w", r.op, err)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s: build request: %w", r.op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.rec.ObserveRequest(r.op, metrics.Code(0), time.Since(start))
		return 0, nil, nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	elapsed := time.Since(start)
	c.rec.ObserveRequest(r.op, metrics.Code(resp.StatusCode), elapsed)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: read body: %w", r.method, r.path, err)
	}

	logger.From(ctx).Debug("admin request",
		logger.Op(r.op),
		logger.Method(r.method),
		logger.Path(r.path),
		logger.Status(resp.StatusCode),
		logger.Duration(elapsed),
		logger.RequestID(reqID),
	)
	return resp.StatusCode, resp.Header, b, nil
}

func realmPath(realm string) string {
	return "/admin/realms/" + url.PathEscape(realm)
}
