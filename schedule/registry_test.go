package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler is a minimal handler for registry and engine tests.
type stubHandler struct {
	service string
	action  string
	execute func(ctx context.Context, run *Run) (*Result, error)
}

func (h *stubHandler) Service() string { return h.service }
func (h *stubHandler) Action() string  { return h.action }

func (h *stubHandler) Execute(ctx context.Context, run *Run) (*Result, error) {
	if h.execute == nil {
		return &Result{Success: true}, nil
	}
	return h.execute(ctx, run)
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	registry := NewRegistry()

	registry.Register(&stubHandler{service: "content", action: "expire"})
	registry.Register(&stubHandler{service: "commission", action: "recalculate"})

	h, ok := registry.Resolve("content", "expire")
	require.True(t, ok)
	assert.Equal(t, "expire", h.Action())

	_, ok = registry.Resolve("content", "publish")
	assert.False(t, ok)

	assert.Equal(t, 2, registry.Count())
	assert.ElementsMatch(t, []string{"content.expire", "commission.recalculate"}, registry.Keys())
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	registry := NewRegistry()

	first := &stubHandler{service: "content", action: "expire"}
	second := &stubHandler{service: "content", action: "expire"}
	registry.Register(first)
	registry.Register(second)

	h, ok := registry.Resolve("content", "expire")
	require.True(t, ok)
	assert.Same(t, second, h)
	assert.Equal(t, 1, registry.Count())
}
