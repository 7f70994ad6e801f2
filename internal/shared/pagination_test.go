package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSorts = map[string]string{
	"USERNAME":   "u.username",
	"CREATED_AT": "p.created_at",
}

func TestNormalizeDefaults(t *testing.T) {
	req, column, err := PageRequest{}.Normalize(testSorts, "CREATED_AT")
	require.NoError(t, err)
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, DefaultPageSize, req.Size)
	assert.Equal(t, OrderAsc, req.Order)
	assert.Equal(t, "p.created_at", column)
}

func TestNormalizeClampsSize(t *testing.T) {
	req, _, err := PageRequest{Page: 3, Size: 10_000, Sort: "username", Order: "desc"}.Normalize(testSorts, "CREATED_AT")
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, req.Size)
	assert.Equal(t, OrderDesc, req.Order)
	assert.Equal(t, 2*MaxPageSize, req.Offset())
}

func TestNormalizeRejectsUnknownSort(t *testing.T) {
	_, _, err := PageRequest{Sort: "u.username; DROP TABLE users"}.Normalize(testSorts, "CREATED_AT")
	require.Error(t, err)

	_, _, err = PageRequest{Sort: "USERNAME", Order: "sideways"}.Normalize(testSorts, "CREATED_AT")
	require.Error(t, err)
}

func TestNewPagingInfo(t *testing.T) {
	info := NewPagingInfo(1, 50, false)
	assert.Equal(t, 0, info.PrevPage)
	assert.Equal(t, 0, info.NextPage)
	assert.False(t, info.HasNext)

	info = NewPagingInfo(2, 50, true)
	assert.Equal(t, 1, info.PrevPage)
	assert.Equal(t, 3, info.NextPage)
	assert.True(t, info.HasNext)
}
