package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrInvalidFormat indicates the scanned text matches no supported QR payload
	ErrInvalidFormat = errors.New("invalid QR code format")
	// ErrInvalidServerAddress indicates the QR code points at a loopback or any-address host
	ErrInvalidServerAddress = errors.New("invalid server address")
	// ErrAccessDenied indicates the server does not recognize the access key
	ErrAccessDenied = errors.New("access denied")
	// ErrAccessDeactivated indicates the access key is known but disabled
	ErrAccessDeactivated = errors.New("access deactivated")

	// ErrConnectionRefused indicates nothing is listening at the server address
	ErrConnectionRefused = errors.New("connection refused")
	// ErrConnectionTimeout indicates the server did not respond in time
	ErrConnectionTimeout = errors.New("connection timed out")
	// ErrNetwork indicates the request failed somewhere on the network path
	ErrNetwork = errors.New("network request failed")
	// ErrNoInternet indicates the device has no usable network
	ErrNoInternet = errors.New("no internet connection")
	// ErrConnection is the generic transport failure
	ErrConnection = errors.New("connection error")
)

type kind struct {
	err      error
	code     string
	guidance string
}

var kinds = []kind{
	{ErrInvalidFormat, "INVALID_FORMAT", "Invalid QR code format. Expected: http://server:port/access/<access_key>. Please scan again."},
	{ErrInvalidServerAddress, "INVALID_SERVER_ADDRESS", "The QR code contains a server address (0.0.0.0, localhost or 127.0.0.1) that only works on the server machine itself. Regenerate the QR code using the server's LAN IP address or domain name."},
	{ErrAccessDenied, "ACCESS_DENIED", "Invalid QR code. This access key is not recognized by the server."},
	{ErrAccessDeactivated, "ACCESS_DEACTIVATED", "This access key has been deactivated. Contact your administrator."},
	{ErrConnectionRefused, "CONNECTION_REFUSED", "Cannot connect to server. Make sure the server is running and accessible."},
	{ErrConnectionTimeout, "CONNECTION_TIMEOUT", "Server did not respond in time. Check your network connection."},
	{ErrNetwork, "NETWORK_ERROR", "Network request failed. Check your internet connection and the server URL."},
	{ErrNoInternet, "NO_INTERNET", "No internet connection. Please connect to WiFi or mobile data."},
	{ErrConnection, "CONNECTION_ERROR", "Failed to connect to server. Check the QR code URL and try again."},
}

// Code returns the error taxonomy code for err, e.g. ACCESS_DENIED.
// Returns an empty string for nil and UNKNOWN_ERROR for errors outside the
// taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "UNKNOWN_ERROR"
}

// Guidance returns the user-facing message for err.
func Guidance(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.guidance
		}
	}
	return err.Error()
}

// IsTransport reports whether err is one of the transport level failures.
func IsTransport(err error) bool {
	return transportRank(err) >= 0
}

// transportRank orders transport failures by how specific they are. Higher
// is more specific. Returns -1 for anything that is not a transport failure.
func transportRank(err error) int {
	switch {
	case errors.Is(err, ErrConnectionRefused):
		return 4
	case errors.Is(err, ErrConnectionTimeout):
		return 3
	case errors.Is(err, ErrNoInternet):
		return 2
	case errors.Is(err, ErrNetwork):
		return 1
	case errors.Is(err, ErrConnection):
		return 0
	default:
		return -1
	}
}

// classifyTransport maps an error from the HTTP client onto the transport
// taxonomy.
func classifyTransport(err error) error {
	var (
		netErr net.Error
		dnsErr *net.DNSError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		return fmt.Errorf("%w: %v", ErrNoInternet, err)
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
		}
		return fmt.Errorf("%w: server address not found: %v", ErrConnection, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
}
