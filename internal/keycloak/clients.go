package keycloak

import (
	"context"
	"net/http"
)

// ListClients: GET /admin/realms/{realm}/clients (todos, sin filtro).
func (c *Client) ListClients(ctx context.Context, realm string) ([]ClientRepresentation, error) {
	var out []ClientRepresentation
	if _, err := c.do(ctx, request{
		op:     "list_clients",
		method: http.MethodGet,
		path:   realmPath(realm) + "/clients",
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateClient: POST /admin/realms/{realm}/clients.
func (c *Client) CreateClient(ctx context.Context, realm string, cl ClientRepresentation) error {
	_, err := c.do(ctx, request{
		op:     "create_client",
		method: http.MethodPost,
		path:   realmPath(realm) + "/clients",
		body:   cl,
	})
	return err
}
