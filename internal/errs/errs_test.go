package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{
			name: "validation error",
			err:  Validation("project_id is required"),
			want: CodeValidation,
		},
		{
			name: "permission error",
			err:  Permission("instance is read-only"),
			want: CodePermission,
		},
		{
			name: "wrapped dependency error",
			err:  fmt.Errorf("calling provider: %w", Dependency("embedding", nil, errors.New("connection refused"))),
			want: CodeDependency,
		},
		{
			name: "plain error maps to dependency",
			err:  errors.New("something broke"),
			want: CodeDependency,
		},
		{
			name: "timeout",
			err:  Timeout("graph", 5*time.Second),
			want: CodeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Dependency("graph", nil, errors.New("down"))))
	assert.True(t, IsTransient(Timeout("embedding", time.Second)))
	assert.False(t, IsTransient(Validation("bad input")))
	assert.False(t, IsTransient(Permission("read-only")))
	assert.False(t, IsTransient(Protocol("unknown tool")))
	assert.False(t, IsTransient(Config("bad config")))
}

func TestDependencyCarriesHint(t *testing.T) {
	hint := 1500 * time.Millisecond
	err := Dependency("embedding", &hint, errors.New("rate limited"))

	got := RetryAfterOf(err)
	require.NotNil(t, got)
	assert.Equal(t, hint, *got)
	assert.Equal(t, "rate limited", err.Details)
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", Validation("missing field"))
	assert.True(t, errors.Is(err, &Error{Code: CodeValidation}))
	assert.False(t, errors.Is(err, &Error{Code: CodePermission}))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := Dependency("graph", nil, cause)
	assert.True(t, errors.Is(err, cause))
}
