package keycloak

// Representaciones del admin REST de Keycloak. Solo los campos que el
// seeding envía o lee; el servidor ignora/completa el resto.

type RealmRepresentation struct {
	ID                     string `json:"id,omitempty"`
	Realm                  string `json:"realm"`
	Enabled                bool   `json:"enabled"`
	DisplayName            string `json:"displayName,omitempty"`
	RegistrationAllowed    bool   `json:"registrationAllowed"`
	LoginWithEmailAllowed  bool   `json:"loginWithEmailAllowed"`
	DuplicateEmailsAllowed bool   `json:"duplicateEmailsAllowed"`
}

type ClientRepresentation struct {
	ID                           string   `json:"id,omitempty"`
	ClientID                     string   `json:"clientId"`
	Enabled                      bool     `json:"enabled"`
	PublicClient                 bool     `json:"publicClient"`
	Secret                       string   `json:"secret,omitempty"`
	RedirectURIs                 []string `json:"redirectUris,omitempty"`
	WebOrigins                   []string `json:"webOrigins,omitempty"`
	StandardFlowEnabled          bool     `json:"standardFlowEnabled"`
	DirectAccessGrantsEnabled    bool     `json:"directAccessGrantsEnabled"`
	ServiceAccountsEnabled       bool     `json:"serviceAccountsEnabled"`
	AuthorizationServicesEnabled bool     `json:"authorizationServicesEnabled"`
}

// CredentialRepresentation: solo type=password en este tool.
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type UserRepresentation struct {
	ID            string                     `json:"id,omitempty"`
	Username      string                     `json:"username"`
	Email         string                     `json:"email,omitempty"`
	FirstName     string                     `json:"firstName,omitempty"`
	LastName      string                     `json:"lastName,omitempty"`
	Enabled       bool                       `json:"enabled"`
	EmailVerified bool                       `json:"emailVerified"`
	Credentials   []CredentialRepresentation `json:"credentials,omitempty"`
}

// PasswordCredential arma una credencial de password no temporal.
func PasswordCredential(value string) CredentialRepresentation {
	return CredentialRepresentation{Type: "password", Value: value, Temporary: false}
}
