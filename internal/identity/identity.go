// Package identity resolves the calling session to an application name.
// The real lookup (client PID -> app name) is an external collaborator
// outside this core; this package defines the boundary interface and a
// static resolver suitable for the REST/WebSocket demo transport, where
// the app name travels with the request instead of being looked up from a
// process table.
package identity

import "errors"

// ErrRejected is returned when the identity service refuses to vouch for a
// session; the caller must terminate that session.
var ErrRejected = errors.New("identity: session rejected")

// Resolver maps a session handle to the application name that owns it.
type Resolver interface {
	AppName(sessionID string) (string, error)
}

// Static resolves every session through a fixed, pre-populated table. It
// models deployments (and this module's test suites) where the app name
// is established at session setup -- e.g. from a client certificate, an
// API key, or a connect-time handshake field -- rather than recovered from
// OS process metadata.
type Static struct {
	names map[string]string
}

// NewStatic creates a resolver with no known sessions; call Register to add
// one as each session is established.
func NewStatic() *Static {
	return &Static{names: make(map[string]string)}
}

// Register associates sessionID with appName for future AppName lookups.
func (s *Static) Register(sessionID, appName string) {
	s.names[sessionID] = appName
}

// Forget removes a session's registration. Nothing in the hub calls it;
// Hub.EndSession only drops the session's memoised namespace.
func (s *Static) Forget(sessionID string) {
	delete(s.names, sessionID)
}

// AppName implements Resolver.
func (s *Static) AppName(sessionID string) (string, error) {
	name, ok := s.names[sessionID]
	if !ok {
		return "", ErrRejected
	}
	return name, nil
}

// Auto wraps Static and vouches for any session on first sight, treating the
// session ID itself as its app name. It stands in for the real identity
// service in the REST/WebSocket demo transport's default configuration,
// where no separate handshake supplies an app name ahead of the first
// operation; deployments that need the rejection behaviour wire a Static (or
// their own Resolver) instead.
type Auto struct {
	inner *Static
}

// NewAuto creates an auto-vouching resolver.
func NewAuto() *Auto {
	return &Auto{inner: NewStatic()}
}

// AppName implements Resolver, registering sessionID as its own app name the
// first time it's seen.
func (a *Auto) AppName(sessionID string) (string, error) {
	if name, err := a.inner.AppName(sessionID); err == nil {
		return name, nil
	}
	a.inner.Register(sessionID, sessionID)
	return a.inner.AppName(sessionID)
}

// Forget removes sessionID's registration, so a later lookup of the same ID
// registers it afresh.
func (a *Auto) Forget(sessionID string) {
	a.inner.Forget(sessionID)
}
