package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porchjobs/marketplace-be/internal/ledger"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	original := &ledger.JobCursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		JobID:     "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0",
	}

	encoded := EncodeJobCursor(original)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, original.CreatedAt.UnixNano(), decoded.CreatedAt.UnixNano())
	assert.Equal(t, original.JobID, decoded.JobID)
}

func TestDecodeJobCursor(t *testing.T) {
	t.Run("empty cursor means first page", func(t *testing.T) {
		cursor, err := DecodeJobCursor("")
		require.NoError(t, err)
		assert.Nil(t, cursor)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := DecodeJobCursor("!!not-base64!!")
		require.Error(t, err)
	})

	t.Run("missing separator", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte("1234567890"))
		_, err := DecodeJobCursor(encoded)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid cursor format")
	})

	t.Run("non-numeric timestamp", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte("yesterday|job-1"))
		_, err := DecodeJobCursor(encoded)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid createdAt")
	})
}
