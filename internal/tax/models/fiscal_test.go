package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiscalYear(t *testing.T) {
	start := time.July

	tests := []struct {
		date string
		want string
	}{
		{"2025-03-01", "2024-2025"},
		{"2025-06-30", "2024-2025"},
		{"2025-07-01", "2025-2026"},
		{"2025-08-01", "2025-2026"},
		{"2025-12-31", "2025-2026"},
		{"2026-01-01", "2025-2026"},
	}
	for _, tc := range tests {
		t.Run(tc.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tc.date)
			require.NoError(t, err)
			assert.Equal(t, tc.want, FiscalYear(d, start))
		})
	}
}

func TestParseFiscalYear(t *testing.T) {
	t.Run("accepts consecutive years", func(t *testing.T) {
		got, err := ParseFiscalYear(" 2025-2026 ")
		require.NoError(t, err)
		assert.Equal(t, "2025-2026", got)
	})

	for _, bad := range []string{"", "2025", "2025-2027", "2026-2025", "abcd-efgh", "25-26"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParseFiscalYear(bad)
			require.Error(t, err)
		})
	}
}
