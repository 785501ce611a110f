package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type PageInfo struct {
	HasMore       bool   `json:"has_more"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// Cursor orders by (CreatedAt, ID) descending.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, err
	}
	return c, nil
}

// BuildCursorPageInfo expects items fetched with limit pageSize+1; the extra
// row signals another page.
func BuildCursorPageInfo[T any](items []*T, pageSize int32, token func(*T) string) *PageInfo {
	if pageSize <= 0 || len(items) <= int(pageSize) {
		return &PageInfo{}
	}
	last := items[pageSize-1]
	return &PageInfo{
		HasMore:       true,
		NextPageToken: token(last),
	}
}
