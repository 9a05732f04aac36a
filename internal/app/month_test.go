package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReferenceMonth(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC), "01/09/2026"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "01/12/2025"},
		{time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC), "01/02/2026"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReferenceMonth(tt.now).Format(RefLayout))
	}
}

func TestAlertWindow(t *testing.T) {
	from, to := AlertWindow(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-12-01T00:00:00Z", from.Format(time.RFC3339))
	assert.Equal(t, "2025-12-31T23:59:59Z", to.Format(time.RFC3339))
}
