// Package keycloaktest levanta un admin API de Keycloak en memoria para tests:
// token endpoint (password grant), discovery, realms, clients y users.
// Registra cada llamada para poder afirmar qué requests se hicieron.
package keycloaktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/kcseed/internal/keycloak"
)

// Credenciales que acepta el token endpoint.
const (
	AdminRealm    = "master"
	AdminClientID = "admin-cli"
	AdminUsername = "admin"
	AdminPassword = "admin123"
)

// Call es una request recibida.
type Call struct {
	Method string
	Path   string
}

type override struct {
	status int
	body   string
}

type realmState struct {
	rep     keycloak.RealmRepresentation
	clients []keycloak.ClientRepresentation
	users   []keycloak.UserRepresentation
}

// Server es el admin API falso.
type Server struct {
	URL string

	mu            sync.Mutex
	realms        map[string]*realmState
	calls         []Call
	validTokens   map[string]bool
	tokenRequests int
	expiresIn     int
	overrides     map[string]override
	failCreate    map[string]override // username -> respuesta
	failDelete    map[string]int      // user id -> status
	onCreateUser  func(keycloak.UserRepresentation)
}

// New arranca el servidor y lo cierra al terminar el test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		realms:      map[string]*realmState{},
		validTokens: map[string]bool{},
		expiresIn:   60,
		overrides:   map[string]override{},
		failCreate:  map[string]override{},
		failDelete:  map[string]int{},
	}
	hs := httptest.NewServer(s.routes())
	t.Cleanup(hs.Close)
	s.URL = hs.URL
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.applyOverrides)

	r.Post("/realms/{realm}/protocol/openid-connect/token", s.token)
	r.Post("/discovered/{realm}/token", s.token)
	r.Get("/realms/{realm}/.well-known/openid-configuration", s.discovery)

	r.Route("/admin/realms", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/", s.createRealm)
		r.Get("/{realm}", s.getRealm)
		r.Get("/{realm}/clients", s.listClients)
		r.Post("/{realm}/clients", s.createClient)
		r.Get("/{realm}/users", s.listUsers)
		r.Post("/{realm}/users", s.createUser)
		r.Delete("/{realm}/users/{id}", s.deleteUser)
	})
	return r
}

/* ============================================================================
   Setup helpers
============================================================================ */

// SetExpiresIn fija el expires_in de los tokens emitidos (0 = se omite).
func (s *Server) SetExpiresIn(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresIn = seconds
}

// AddRealm crea un realm ya existente.
func (s *Server) AddRealm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realms[name] = &realmState{rep: keycloak.RealmRepresentation{ID: name, Realm: name, Enabled: true}}
}

// AddClient agrega un client a un realm existente.
func (s *Server) AddClient(realm, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.mustRealm(realm)
	rs.clients = append(rs.clients, keycloak.ClientRepresentation{ID: uuid.NewString(), ClientID: clientID, Enabled: true})
}

// AddUser agrega un usuario y devuelve su id.
func (s *Server) AddUser(realm, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.mustRealm(realm)
	id := uuid.NewString()
	rs.users = append(rs.users, keycloak.UserRepresentation{ID: id, Username: username, Enabled: true})
	return id
}

// Override responde status/body a toda request "METHOD path" (path exacto).
func (s *Server) Override(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = override{status: status, body: body}
}

// FailCreateUser hace fallar la creación de ese username.
func (s *Server) FailCreateUser(username string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate[username] = override{status: status, body: body}
}

// FailDeleteUser hace fallar el borrado de ese id.
func (s *Server) FailDeleteUser(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[id] = status
}

// OnCreateUser se llama con cada usuario recibido, antes de responder.
func (s *Server) OnCreateUser(fn func(keycloak.UserRepresentation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreateUser = fn
}

// RevokeTokens invalida todos los tokens emitidos (simula expiración).
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validTokens = map[string]bool{}
}

/* ============================================================================
   Inspección
============================================================================ */

// Calls devuelve una copia de las requests recibidas.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count cuenta requests con ese método y path exacto.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// CountMethod cuenta requests de un método cuyo path empieza con prefix.
func (s *Server) CountMethod(method, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// TokenRequests cuenta password grants recibidos (exitosos o no).
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}

// Realm devuelve el realm guardado.
func (s *Server) Realm(name string) (keycloak.RealmRepresentation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.realms[name]
	if !ok {
		return keycloak.RealmRepresentation{}, false
	}
	return rs.rep, true
}

// Clients devuelve los clients del realm.
func (s *Server) Clients(realm string) []keycloak.ClientRepresentation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.realms[realm]; ok {
		return append([]keycloak.ClientRepresentation(nil), rs.clients...)
	}
	return nil
}

// Users devuelve los usuarios del realm.
func (s *Server) Users(realm string) []keycloak.UserRepresentation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.realms[realm]; ok {
		return append([]keycloak.UserRepresentation(nil), rs.users...)
	}
	return nil
}

/* ============================================================================
   Middlewares
============================================================================ */

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) applyOverrides(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		o, ok := s.overrides[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeRaw(w, o.status, o.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := tok != "" && s.validTokens[tok]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "HTTP 401 Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

/* ============================================================================
   Handlers
============================================================================ */

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokenRequests++
	s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "password" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	if chi.URLParam(r, "realm") != AdminRealm ||
		r.PostForm.Get("client_id") != AdminClientID ||
		r.PostForm.Get("username") != AdminUsername ||
		r.PostForm.Get("password") != AdminPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid user credentials",
		})
		return
	}

	s.mu.Lock()
	tok := "tok-" + strconv.Itoa(s.tokenRequests)
	s.validTokens[tok] = true
	expiresIn := s.expiresIn
	s.mu.Unlock()

	resp := map[string]any{"access_token": tok, "token_type": "Bearer"}
	if expiresIn > 0 {
		resp["expires_in"] = expiresIn
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) discovery(w http.ResponseWriter, r *http.Request) {
	realm := chi.URLParam(r, "realm")
	issuer := s.URL + "/realms/" + realm
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + "/protocol/openid-connect/auth",
		"token_endpoint":                        s.URL + "/discovered/" + realm + "/token",
		"userinfo_endpoint":                     issuer + "/protocol/openid-connect/userinfo",
		"jwks_uri":                              issuer + "/protocol/openid-connect/certs",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (s *Server) getRealm(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rs, ok := s.realms[chi.URLParam(r, "realm")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm not found."})
		return
	}
	writeJSON(w, http.StatusOK, rs.rep)
}

func (s *Server) createRealm(w http.ResponseWriter, r *http.Request) {
	var rep keycloak.RealmRepresentation
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil || rep.Realm == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorMessage": "invalid realm representation"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.realms[rep.Realm]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "Conflict detected. See logs for details"})
		return
	}
	rep.ID = rep.Realm
	s.realms[rep.Realm] = &realmState{rep: rep}
	w.Header().Set("Location", s.URL+"/admin/realms/"+rep.Realm)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rs, ok := s.realms[chi.URLParam(r, "realm")]
	var out []keycloak.ClientRepresentation
	if ok {
		out = append([]keycloak.ClientRepresentation{}, rs.clients...)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm not found."})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createClient(w http.ResponseWriter, r *http.Request) {
	realm := chi.URLParam(r, "realm")
	var rep keycloak.ClientRepresentation
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil || rep.ClientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorMessage": "invalid client representation"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.realms[realm]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm not found."})
		return
	}
	for _, c := range rs.clients {
		if c.ClientID == rep.ClientID {
			writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "Client " + rep.ClientID + " already exists"})
			return
		}
	}
	rep.ID = uuid.NewString()
	rs.clients = append(rs.clients, rep)
	w.Header().Set("Location", s.URL+"/admin/realms/"+realm+"/clients/"+rep.ID)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rs, ok := s.realms[chi.URLParam(r, "realm")]
	var out []keycloak.UserRepresentation
	if ok {
		out = append([]keycloak.UserRepresentation{}, rs.users...)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm not found."})
		return
	}
	if max, err := strconv.Atoi(r.URL.Query().Get("max")); err == nil && max >= 0 && max < len(out) {
		out = out[:max]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	realm := chi.URLParam(r, "realm")
	var rep keycloak.UserRepresentation
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil || rep.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorMessage": "invalid user representation"})
		return
	}

	s.mu.Lock()
	hook := s.onCreateUser
	s.mu.Unlock()
	if hook != nil {
		hook(rep)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.failCreate[rep.Username]; ok {
		writeRaw(w, f.status, f.body)
		return
	}
	rs, ok := s.realms[realm]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm not found."})
		return
	}
	for _, u := range rs.users {
		if u.Username == rep.Username {
			writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "User exists with same username"})
			return
		}
		if rep.Email != "" && u.Email == rep.Email && !rs.rep.DuplicateEmailsAllowed {
			writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "User exists with same email"})
			return
		}
	}
	rep.ID = uuid.NewString()
	rep.Credentials = nil
	rs.users = append(rs.users, rep)
	w.Header().Set("Location", fmt.Sprintf("%s/admin/realms/%s/users/%s", s.URL, realm, rep.ID))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	realm, id := chi.URLParam(r, "realm"), chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.failDelete[id]; ok {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	rs, ok := s.realms[realm]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm not found."})
		return
	}
	for i, u := range rs.users {
		if u.ID == id {
			rs.users = append(rs.users[:i], rs.users[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
}

/* ============================================================================
   utils
============================================================================ */

func (s *Server) mustRealm(name string) *realmState {
	rs, ok := s.realms[name]
	if !ok {
		panic("keycloaktest: unknown realm " + name)
	}
	return rs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	if strings.HasPrefix(strings.TrimSpace(body), "{") || strings.HasPrefix(strings.TrimSpace(body), "[") {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
