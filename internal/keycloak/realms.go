package keycloak

import (
	"context"
	"net/http"
)

// GetRealm: GET /admin/realms/{realm}. 404 => ErrNotFound.
func (c *Client) GetRealm(ctx context.Context, realm string) (*RealmRepresentation, error) {
	var out RealmRepresentation
	if _, err := c.do(ctx, request{
		op:     "get_realm",
		method: http.MethodGet,
		path:   realmPath(realm),
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRealm: POST /admin/realms.
func (c *Client) CreateRealm(ctx context.Context, r RealmRepresentation) error {
	_, err := c.do(ctx, request{
		op:     "create_realm",
		method: http.MethodPost,
		path:   "/admin/realms",
		body:   r,
	})
	return err
}
