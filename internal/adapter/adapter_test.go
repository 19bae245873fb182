package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridex-labs/trustpipe/internal/model"
)

type stubAdapter struct{ name string }

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Discover(context.Context, DiscoverQuery) ([]model.CandidateRecord, error) {
	return nil, nil
}

func (s *stubAdapter) FetchRegistry(context.Context, string, string) (*model.RegistryData, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(&stubAdapter{name: "brreg"}))
	assert.Error(t, reg.Register(&stubAdapter{name: "brreg"}), "duplicate name")
	assert.Error(t, reg.Register(&stubAdapter{}), "empty name")
	assert.Error(t, reg.Register(nil), "nil adapter")

	a, err := reg.Lookup("brreg")
	require.NoError(t, err)
	assert.Equal(t, "brreg", a.Name())

	_, err = reg.Lookup("missing")
	assert.Error(t, err)
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubAdapter{name: "static"}))
	require.NoError(t, reg.Register(&stubAdapter{name: "brreg"}))

	assert.Equal(t, []string{"brreg", "static"}, reg.Names())
}
