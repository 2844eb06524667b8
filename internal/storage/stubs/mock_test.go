package stubs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbot/internal/storage"
)

func TestMockUpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMockDB()

	require.NoError(t, m.UpsertRows(ctx, "users", []storage.Row{
		{Key: "1", Data: []byte(`{"a":1}`)},
		{Key: "2", Data: []byte(`{"a":2}`)},
	}))
	require.NoError(t, m.UpsertRows(ctx, "users", []storage.Row{
		{Key: "1", Data: []byte(`{"a":9}`)},
	}))

	rows, err := m.LoadRows(ctx, "users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `{"a":9}`, string(rows[0].Data))
	assert.Equal(t, `{"a":2}`, string(rows[1].Data))
}

func TestMockReplace(t *testing.T) {
	ctx := context.Background()
	m := NewMockDB()

	require.NoError(t, m.ReplaceRows(ctx, "reviews", []storage.Row{
		{Key: "0", Data: []byte(`a`)},
		{Key: "1", Data: []byte(`b`)},
	}))
	require.NoError(t, m.ReplaceRows(ctx, "reviews", []storage.Row{
		{Key: "0", Data: []byte(`c`)},
	}))

	rows, err := m.LoadRows(ctx, "reviews")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", string(rows[0].Data))
}

func TestMockCounters(t *testing.T) {
	ctx := context.Background()
	m := NewMockDB()

	v, err := m.LoadCounter(ctx, "ticket", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	require.NoError(t, m.SaveCounter(ctx, "ticket", 9))
	v, err = m.LoadCounter(ctx, "ticket", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
}

func TestMockFailWith(t *testing.T) {
	ctx := context.Background()
	m := NewMockDB()

	m.FailWith(assert.AnError)
	_, err := m.LoadRows(ctx, "users")
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, m.UpsertRows(ctx, "users", nil), assert.AnError)
	assert.ErrorIs(t, m.ReplaceRows(ctx, "users", nil), assert.AnError)
	_, err = m.LoadCounter(ctx, "ticket", 1)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, m.SaveCounter(ctx, "ticket", 1), assert.AnError)

	m.FailWith(nil)
	_, err = m.LoadRows(ctx, "users")
	assert.NoError(t, err)
}

func TestMockSeedRow(t *testing.T) {
	ctx := context.Background()
	m := NewMockDB()

	m.SeedRow("users", "1", []byte(`not json`))

	rows, err := m.LoadRows(ctx, "users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].Key)
	assert.Equal(t, "not json", string(rows[0].Data))
}

func TestMockRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMockDB()

	data := []byte(`{"a":1}`)
	require.NoError(t, m.UpsertRows(ctx, "users", []storage.Row{{Key: "1", Data: data}}))
	data[0] = 'X'

	rows, err := m.LoadRows(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(rows[0].Data), "stored data must not alias caller buffers")
}
