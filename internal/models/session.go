package models

import (
	"time"
)

const (
	DefaultIdentityName = "Authorized User"
	DefaultStoreName    = "Connected Store"
)

// Session represents the authenticated state for this client installation.
// ServerBaseURL and AccessKey are credentials and are always written together.
// Identity and Store are enrichment and may be missing without invalidating
// the session.
type Session struct {
	ServerBaseURL string // scheme://host[:port] of the self-hosted backend
	AccessKey     string // opaque bearer credential taken from the QR code

	Identity *Identity
	Store    *Store

	// Legacy is set for sessions created from the visenty://connect scheme.
	// They carry no credentials and are never validated against a server.
	Legacy bool

	ValidatedAt time.Time
}

// Valid returns true if the session is usable.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	if s.Legacy {
		return true
	}
	return s.ServerBaseURL != "" && s.AccessKey != ""
}

// IdentityName returns the display name, falling back to the default.
func (s *Session) IdentityName() string {
	if s == nil || s.Identity == nil || s.Identity.Name == "" {
		return DefaultIdentityName
	}
	return s.Identity.Name
}

// StoreName returns the connected store name, falling back to the default.
func (s *Session) StoreName() string {
	if s == nil || s.Store == nil || s.Store.Name == "" {
		return DefaultStoreName
	}
	return s.Store.Name
}
