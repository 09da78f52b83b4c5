package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(name string, err error) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return err }}
}

func TestHealthAggregation(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		want      string
		wantReady bool
	}{
		{
			name:      "all healthy",
			checkers:  []Checker{checker("embeddings", nil), checker("graph", nil)},
			want:      StatusHealthy,
			wantReady: true,
		},
		{
			name:      "one failing is degraded",
			checkers:  []Checker{checker("embeddings", errors.New("refused")), checker("graph", nil)},
			want:      StatusDegraded,
			wantReady: true,
		},
		{
			name:      "all failing is unhealthy",
			checkers:  []Checker{checker("embeddings", errors.New("refused")), checker("graph", errors.New("refused"))},
			want:      StatusUnhealthy,
			wantReady: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth(time.Minute, time.Second, nil, tt.checkers...)
			got := h.Check(context.Background())
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.wantReady, h.Ready())
			assert.Equal(t, got, h.Snapshot())
		})
	}
}

func TestHealthComponentDetail(t *testing.T) {
	h := NewHealth(time.Minute, time.Second, nil,
		checker("graph", errors.New("connection refused")))

	got := h.Check(context.Background())
	component, ok := got.Components["graph"]
	require.True(t, ok)
	assert.Equal(t, StatusUnhealthy, component.Status)
	assert.Contains(t, component.Error, "connection refused")
	assert.False(t, component.CheckedAt.IsZero())
}

func TestHealthUnreadyBeforeFirstProbe(t *testing.T) {
	h := NewHealth(time.Minute, time.Second, nil, checker("graph", nil))
	assert.False(t, h.Ready())
	assert.Equal(t, StatusUnhealthy, h.Snapshot().Status)
}

func TestHealthProbeTimeout(t *testing.T) {
	h := NewHealth(time.Minute, 20*time.Millisecond, nil, Checker{
		Name: "graph",
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	start := time.Now()
	got := h.Check(context.Background())
	assert.Less(t, time.Since(start), time.Second, "probe must honor its timeout")
	assert.Equal(t, StatusUnhealthy, got.Status)
}
