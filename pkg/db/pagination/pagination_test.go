package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2025-06-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
	assert.Equal(t, "2025-06-01T00:00:00Z", cursor.CreatedAt)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("!!not-base64!!")
	assert.Error(t, err)

	_, err = DecodeCursor("bm90LWpzb24")
	assert.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id string }
	items := []*row{{"a"}, {"b"}, {"c"}}

	// Fewer rows than pageSize+1: no further page.
	info := BuildCursorPageInfo(items[:2], 2, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	// The probe row signals another page; the token points at the page's last row.
	info = BuildCursorPageInfo(items, 2, func(r *row) string { return r.id })
	assert.True(t, info.HasMore)
	assert.Equal(t, "b", info.NextPageToken)
}
