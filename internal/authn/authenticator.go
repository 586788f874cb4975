// Package authn verifies staff sign-in at the terminal. Staff punch in with
// a username and PIN; the resulting identity carries the role the access
// guard evaluates.
package authn

import "errors"

// ErrAuthenticationFailed is returned for any bad credential pair. The
// reason is deliberately not distinguished.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Staff is an authenticated terminal user.
type Staff struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Credential pairs a PIN with the role it signs in as.
type Credential struct {
	PIN  string
	Role string
}

type Authenticator interface {
	Authenticate(username, pin string) (*Staff, error)
}

// StaticAuthenticator checks credentials against a fixed roster, typically
// loaded from deployment config. Venues with real staff management plug in
// their own Authenticator.
type StaticAuthenticator struct {
	roster map[string]Credential
}

// NewStaticAuthenticator creates an authenticator over a fixed roster.
func NewStaticAuthenticator(roster map[string]Credential) *StaticAuthenticator {
	return &StaticAuthenticator{roster: roster}
}

func (a *StaticAuthenticator) Authenticate(username, pin string) (*Staff, error) {
	cred, ok := a.roster[username]
	if !ok || cred.PIN == "" || cred.PIN != pin {
		return nil, ErrAuthenticationFailed
	}

	return &Staff{Username: username, Role: cred.Role}, nil
}
