package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationKey(t *testing.T) {
	v := &Visitor{IPAddress: "203.0.113.10", Browser: "Chrome 126", OS: "Linux"}
	assert.Equal(t, "203.0.113.10|Chrome 126|Linux", v.CorrelationKey())

	// Two visitors sharing address and browser signature belong to one cluster.
	w := &Visitor{VisitorID: "other", IPAddress: "203.0.113.10", Browser: "Chrome 126", OS: "Linux"}
	assert.Equal(t, v.CorrelationKey(), w.CorrelationKey())

	// A differing OS breaks the cluster.
	w.OS = "Windows"
	assert.NotEqual(t, v.CorrelationKey(), w.CorrelationKey())
}

func TestSessionExpiredAt(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{CreatedAt: created}

	assert.False(t, s.ExpiredAt(created.Add(23*time.Hour), 24*time.Hour))
	assert.False(t, s.ExpiredAt(created.Add(24*time.Hour), 24*time.Hour), "exactly at the boundary is still valid")
	assert.True(t, s.ExpiredAt(created.Add(24*time.Hour+time.Second), 24*time.Hour))
}
