package provision

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/dropDatabas3/kcseed/internal/keycloak"
)

// Username devuelve "user" + seq con al menos dos dígitos: user01, user42, user100.
func Username(seq int) string {
	return fmt.Sprintf("user%02d", seq)
}

// User es un usuario sintético a crear.
type User struct {
	Seq       int
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Representation arma el payload de alta: habilitado, email verificado y
// password no temporal.
func (u User) Representation() keycloak.UserRepresentation {
	return keycloak.UserRepresentation{
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Enabled:       true,
		EmailVerified: true,
		Credentials:   []keycloak.CredentialRepresentation{keycloak.PasswordCredential(u.Password)},
	}
}

// Generator produce usuarios con nombres aleatorios. Con la misma semilla
// produce la misma secuencia de nombres; semilla 0 = aleatoria.
type Generator struct {
	faker    *gofakeit.Faker
	password string
	domain   string
}

func NewGenerator(seed int64, password, emailDomain string) *Generator {
	return &Generator{
		faker:    gofakeit.New(seed),
		password: password,
		domain:   emailDomain,
	}
}

// User genera el usuario número seq (1-based).
func (g *Generator) User(seq int) User {
	name := Username(seq)
	return User{
		Seq:       seq,
		Username:  name,
		Email:     name + "@" + g.domain,
		FirstName: g.faker.FirstName(),
		LastName:  g.faker.LastName(),
		Password:  g.password,
	}
}
