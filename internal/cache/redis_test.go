package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_GetMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewIdempotencyCache(rdb, time.Hour)
	accountID := uuid.New()

	mock.ExpectGet(cacheKey(accountID, "key-1")).RedisNil()

	entry, err := c.Get(context.Background(), accountID, "key-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyCache_RoundTrip(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewIdempotencyCache(rdb, time.Hour)
	accountID := uuid.New()

	entry := &Entry{
		RequestHash: "abc123",
		StatusCode:  201,
		Body:        []byte(`{"success":true}`),
	}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectSet(cacheKey(accountID, "key-1"), raw, time.Hour).SetVal("OK")
	require.NoError(t, c.Set(context.Background(), accountID, "key-1", entry))

	mock.ExpectGet(cacheKey(accountID, "key-1")).SetVal(string(raw))
	got, err := c.Get(context.Background(), accountID, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.RequestHash, got.RequestHash)
	assert.Equal(t, entry.StatusCode, got.StatusCode)
	assert.Equal(t, entry.Body, got.Body)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyCache_KeysAreAccountScoped(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, cacheKey(a, "k"), cacheKey(b, "k"))
}
