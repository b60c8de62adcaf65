package persistence

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentPush(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRecentStore(db)

	rec := sampleRecord()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectLPush(recentKey, data).SetVal(1)
	mock.ExpectLTrim(recentKey, 0, DefaultRecentMax-1).SetVal("OK")

	err = store.Push(context.Background(), rec)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentList(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRecentStore(db)

	first := sampleRecord()
	second := sampleRecord()
	second.ID = "9d01a6a0-58f6-47b2-9f55-6f24e8a1c210"
	second.VIN = "1FTEW1EP5MKE00002"

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	mock.ExpectLRange(recentKey, 0, 1).
		SetVal([]string{string(firstJSON), string(secondJSON)})

	recs, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, first, recs[0])
	assert.Equal(t, second.VIN, recs[1].VIN)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentListClampsLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRecentStore(db)

	// Zero and oversized limits both fall back to the list cap.
	mock.ExpectLRange(recentKey, 0, DefaultRecentMax-1).SetVal(nil)

	recs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentListCorruptEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRecentStore(db)

	mock.ExpectLRange(recentKey, 0, 0).SetVal([]string{"{not json"})

	_, err := store.List(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal score record")
}

func TestRecentLen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRecentStore(db)

	mock.ExpectLLen(recentKey).SetVal(42)

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
