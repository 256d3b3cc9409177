// Package pagination implements cursor-based pagination shared by
// list endpoints. Cursors encode the last row of the previous page.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Pagination carries the caller-facing page parameters.
type Pagination struct {
	PageToken string `form:"page_token" json:"page_token"`
	PageSize  int    `form:"page_size" json:"page_size"`
}

// DefaultPageSize applies when the caller does not ask for a size.
const DefaultPageSize = 50

// Size normalizes the requested page size.
func (p Pagination) Size() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

// Cursor pins a position in a created_at DESC, id DESC ordering.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// PageInfo reports whether more rows exist past the returned page.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

var errInvalidCursor = errors.New("invalid_page_token")

// EncodeCursor serializes a cursor into an opaque page token.
func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a page token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, errInvalidCursor
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, errInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, errInvalidCursor
	}
	if c.ID == "" {
		return Cursor{}, errInvalidCursor
	}
	return c, nil
}

// BuildCursorPageInfo inspects a result fetched with one extra row
// beyond pageSize and derives the next page token from the last row of
// the page. Callers trim the extra row when HasMore is set.
func BuildCursorPageInfo[T any](items []T, pageSize int, token func(T) string) *PageInfo {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if len(items) <= pageSize {
		return &PageInfo{}
	}
	return &PageInfo{
		HasMore:       true,
		NextPageToken: token(items[pageSize-1]),
	}
}
