package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_Valid(t *testing.T) {
	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{name: "nil session", session: nil, want: false},
		{name: "empty session", session: &Session{}, want: false},
		{name: "url only", session: &Session{ServerBaseURL: "http://10.0.0.5:5000"}, want: false},
		{name: "key only", session: &Session{AccessKey: "k"}, want: false},
		{name: "url and key", session: &Session{ServerBaseURL: "http://10.0.0.5:5000", AccessKey: "k"}, want: true},
		{name: "legacy", session: &Session{Legacy: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Valid())
		})
	}
}

func TestSession_DisplayDefaults(t *testing.T) {
	s := &Session{}
	assert.Equal(t, DefaultIdentityName, s.IdentityName())
	assert.Equal(t, DefaultStoreName, s.StoreName())

	s.Identity = &Identity{Name: "Jane"}
	s.Store = &Store{Name: "Downtown"}
	assert.Equal(t, "Jane", s.IdentityName())
	assert.Equal(t, "Downtown", s.StoreName())
}
