package scan

import "sync"

// Gate tracks camera-permission state at the host boundary. The platform
// allows prompting the user only once per determination cycle: once the
// host reports denied or restricted, no further request is issued and the
// decision stands until the host itself reports something new.
type Gate struct {
	request  func()              // asks the host to prompt the user, at most once
	onChange func(Authorization) // typically Session.SetAuthorization, may be nil

	mu        sync.Mutex
	status    Authorization
	requested bool
}

// NewGate creates a gate in the unknown state. request is invoked at most
// once, the first time the gate is activated while undetermined.
func NewGate(request func(), onChange func(Authorization)) *Gate {
	return &Gate{request: request, onChange: onChange}
}

// Activate queries the gate on first use. If the status is still
// undetermined, the permission request is issued exactly once; the decision
// arrives later through Update. Returns the status as currently known.
func (g *Gate) Activate() Authorization {
	g.mu.Lock()
	status := g.status
	shouldRequest := status == AuthorizationUnknown && !g.requested
	if shouldRequest {
		g.requested = true
	}
	g.mu.Unlock()

	if shouldRequest && g.request != nil {
		g.request()
	}
	return status
}

// Update applies an authorization report from the host and forwards it.
// Repeated identical reports are forwarded too: a refreshed "authorized"
// restarts an idle session.
func (g *Gate) Update(status Authorization) {
	g.mu.Lock()
	if status != AuthorizationUnknown {
		// A determination was made; never re-prompt within this cycle.
		g.requested = true
	}
	g.status = status
	g.mu.Unlock()

	if g.onChange != nil {
		g.onChange(status)
	}
}

// Status returns the authorization as currently known.
func (g *Gate) Status() Authorization {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}
