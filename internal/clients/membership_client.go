package clients

import (
	"context"
	"net/http"
	"net/url"

	"librarian/internal/membership"
)

func (c *Client) RegisterMember(ctx context.Context, reg membership.Registration) (*membership.Member, error) {
	var member membership.Member
	if err := c.do(ctx, http.MethodPost, "/members", reg, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) GetMember(ctx context.Context, ref string) (*membership.Member, error) {
	var member membership.Member
	if err := c.do(ctx, http.MethodGet, "/members/"+url.PathEscape(ref), nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}
