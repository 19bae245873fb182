package resilience

import (
	"context"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestAdapterError(t *testing.T) {
	cause := eris.New("status 502")
	err := NewAdapterError("brreg", cause)

	assert.Equal(t, "adapter brreg: status 502", err.Error())
	assert.True(t, IsAdapter(err))
	assert.False(t, IsStore(err))
	assert.True(t, eris.Is(err, cause))

	anon := NewAdapterError("", cause)
	assert.Equal(t, "adapter: status 502", anon.Error())

	// Classification survives further wrapping.
	wrapped := eris.Wrap(err, "handle registry job")
	assert.True(t, IsAdapter(wrapped))
}

func TestStoreError(t *testing.T) {
	cause := eris.New("connection closed")
	err := NewStoreError("upsert", cause)

	assert.Equal(t, "store upsert: connection closed", err.Error())
	assert.True(t, IsStore(err))
	assert.False(t, IsAdapter(err))
	assert.True(t, IsStore(eris.Wrap(err, "handle discover job")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"net timeout", net.Error(timeoutErr{}), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"dns failure", eris.New("lookup example.no: no such host"), true},
		{"tls handshake", eris.New("net/http: TLS handshake timeout"), true},
		{"io timeout", eris.New("read tcp: i/o timeout"), true},
		{"plain error", eris.New("status 404"), false},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
