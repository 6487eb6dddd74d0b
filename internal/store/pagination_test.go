package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := OrderCursor{
		CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		ID:        42,
	}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeEmptyCursorStartsAtTop(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<63-1), cursor.ID)
	assert.WithinDuration(t, time.Now(), cursor.CreatedAt, time.Minute)
}

func TestDecodeGarbageCursor(t *testing.T) {
	_, err := DecodeCursor("not-base64!!")
	assert.Error(t, err)
}

func TestNewOffsetPage(t *testing.T) {
	page := newOffsetPage(nil, 45, 2, 20)
	assert.Equal(t, int64(45), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)

	page = newOffsetPage(nil, 40, 1, 20)
	assert.Equal(t, 2, page.TotalPages)
}
