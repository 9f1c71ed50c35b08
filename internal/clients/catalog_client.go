package clients

import (
	"context"
	"net/http"
	"net/url"

	"librarian/internal/catalog"
)

func (c *Client) AddBook(ctx context.Context, nb catalog.NewBook) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodPost, "/books", nb, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) GetBook(ctx context.Context, ref string) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(ref), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) LookupBook(ctx context.Context, ref string) (*catalog.View, error) {
	var view catalog.View
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(ref)+"/lookup", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) UpdateBook(ctx context.Context, ref string, patch catalog.BookPatch) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodPatch, "/books/"+url.PathEscape(ref), patch, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) DeleteBook(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(ref), nil, nil)
}

func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	stats := map[string]int{}
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
