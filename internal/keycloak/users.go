package keycloak

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strconv"
)

// ListUsers: GET /admin/realms/{realm}/users. Una sola página: si max > 0
// se manda como ?max=, si no aplica el default del servidor.
func (c *Client) ListUsers(ctx context.Context, realm string, max int) ([]UserRepresentation, error) {
	var q url.Values
	if max > 0 {
		q = url.Values{"max": []string{strconv.Itoa(max)}}
	}
	var out []UserRepresentation
	if _, err := c.do(ctx, request{
		op:     "list_users",
		method: http.MethodGet,
		path:   realmPath(realm) + "/users",
		query:  q,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser: DELETE /admin/realms/{realm}/users/{id}.
func (c *Client) DeleteUser(ctx context.Context, realm, id string) error {
	_, err := c.do(ctx, request{
		op:     "delete_user",
		method: http.MethodDelete,
		path:   realmPath(realm) + "/users/" + url.PathEscape(id),
	})
	return err
}

// CreateUser: POST /admin/realms/{realm}/users. Devuelve el id tomado del
// header Location ("" si el servidor no lo manda).
func (c *Client) CreateUser(ctx context.Context, realm string, u UserRepresentation) (string, error) {
	resp, err := c.do(ctx, request{
		op:     "create_user",
		method: http.MethodPost,
		path:   realmPath(realm) + "/users",
		body:   u,
	})
	if err != nil {
		return "", err
	}
	if loc := resp.header.Get("Location"); loc != "" {
		return path.Base(loc), nil
	}
	return "", nil
}
