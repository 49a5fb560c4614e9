package apiclient

import (
	"context"
	"net/http"

	"shopadmin/internal/failure"
	"shopadmin/internal/model"
)

// WhoAmI resolves the session cookie to a user; Unauthorized when there is none.
func (c *Client) WhoAmI(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, &u)
	return u, err
}

func (c *Client) Login(ctx context.Context, cred model.Credentials) (model.User, error) {
	var u model.User
	if err := cred.Validate(); err != nil {
		return u, &failure.Failure{Kind: failure.KindValidation, Op: "login", Message: err.Error()}
	}
	err := c.do(ctx, http.MethodPost, "/api/users/auth", cred, &u)
	return u, err
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	var u model.User
	if err := reg.Validate(); err != nil {
		return u, &failure.Failure{Kind: failure.KindValidation, Op: "register", Message: err.Error()}
	}
	err := c.do(ctx, http.MethodPost, "/api/users", reg, &u)
	return u, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/users/logout", nil, nil)
}

// ProfileUpdate is the self-service profile payload; an empty Password keeps the old one.
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

func (c *Client) UpdateProfile(ctx context.Context, p ProfileUpdate) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPut, "/api/users/profile", p, &u)
	return u, err
}
