package access

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidFormat, "INVALID_FORMAT"},
		{fmt.Errorf("%w: detail", ErrInvalidServerAddress), "INVALID_SERVER_ADDRESS"},
		{ErrAccessDenied, "ACCESS_DENIED"},
		{ErrAccessDeactivated, "ACCESS_DEACTIVATED"},
		{ErrConnectionRefused, "CONNECTION_REFUSED"},
		{ErrConnectionTimeout, "CONNECTION_TIMEOUT"},
		{ErrNetwork, "NETWORK_ERROR"},
		{ErrNoInternet, "NO_INTERNET"},
		{ErrConnection, "CONNECTION_ERROR"},
		{errors.New("boom"), "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestGuidance(t *testing.T) {
	assert.Empty(t, Guidance(nil))
	assert.Contains(t, Guidance(fmt.Errorf("%w: x", ErrInvalidServerAddress)), "LAN IP")
	assert.Contains(t, Guidance(ErrAccessDeactivated), "administrator")
	assert.Equal(t, "boom", Guidance(errors.New("boom")))

	for _, k := range kinds {
		assert.NotEmpty(t, Guidance(k.err), k.code)
	}
}

func TestClassifyTransport(t *testing.T) {
	dial := func(err error) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", err)}
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"refused", dial(syscall.ECONNREFUSED), ErrConnectionRefused},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ErrConnectionTimeout},
		{"net unreachable", dial(syscall.ENETUNREACH), ErrNoInternet},
		{"net down", dial(syscall.ENETDOWN), ErrNoInternet},
		{"host unreachable", dial(syscall.EHOSTUNREACH), ErrNetwork},
		{"reset", dial(syscall.ECONNRESET), ErrNetwork},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "cams.invalid", IsNotFound: true}, ErrConnection},
		{"dns timeout", &net.DNSError{Err: "i/o timeout", Name: "cams.example.com", IsTimeout: true}, ErrConnectionTimeout},
		{"canceled", context.Canceled, ErrConnection},
		{"other", errors.New("tls: handshake failure"), ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransport(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.True(t, IsTransport(got))
		})
	}
}

func TestTransportRank(t *testing.T) {
	assert.Greater(t, transportRank(ErrConnectionRefused), transportRank(ErrConnectionTimeout))
	assert.Greater(t, transportRank(ErrConnectionTimeout), transportRank(ErrNoInternet))
	assert.Greater(t, transportRank(ErrNoInternet), transportRank(ErrNetwork))
	assert.Greater(t, transportRank(ErrNetwork), transportRank(ErrConnection))
	assert.Equal(t, -1, transportRank(nil))
	assert.Equal(t, -1, transportRank(ErrAccessDenied))
	assert.False(t, IsTransport(ErrInvalidFormat))
}
