package clients

import (
	"context"
	"net/http"
	"net/url"

	"librarian/internal/auth"
	"librarian/internal/circulation"
)

func (c *Client) Issue(ctx context.Context, bookRef, memberRef string) (*circulation.Receipt, error) {
	return c.move(ctx, "issue", bookRef, memberRef)
}

func (c *Client) Return(ctx context.Context, bookRef, memberRef string) (*circulation.Receipt, error) {
	return c.move(ctx, "return", bookRef, memberRef)
}

func (c *Client) move(ctx context.Context, op, bookRef, memberRef string) (*circulation.Receipt, error) {
	var receipt circulation.Receipt
	path := "/books/" + url.PathEscape(bookRef) + "/" + op
	if err := c.do(ctx, http.MethodPost, path, circulation.MoveRequest{Member: memberRef}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Login opens an admin session. The client keeps using its own token; pass
// the returned one to NewClient.
func (c *Client) Login(ctx context.Context, username, password string) (*auth.Session, error) {
	var session auth.Session
	err := c.do(ctx, http.MethodPost, "/auth/login", auth.LoginRequest{Username: username, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
