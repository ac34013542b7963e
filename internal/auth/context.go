package auth

import "context"

// Staff roles carried by identity tokens.
const (
	RoleSecurity = "security"
	RoleAdmin    = "admin"
	RoleHost     = "host"
)

type contextKey struct{}

// Identity is the resolved requester. KioskDegraded marks the explicitly
// configured unauthenticated kiosk mode; it is never set as a fallback for a
// failed token lookup.
type Identity struct {
	SubjectID     int64
	Role          string
	KioskDegraded bool
}

// DegradedKiosk returns the identity used by a physically-supervised kiosk
// running without authentication. Callers must gate construction behind the
// kiosk-degraded configuration switch.
func DegradedKiosk() Identity {
	return Identity{KioskDegraded: true}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.Role == RoleAdmin
}

// CanOverride reports whether the identity can request a capacity override:
// security or admin staff, or the degraded kiosk mode.
func (id Identity) CanOverride() bool {
	return id.KioskDegraded || id.Role == RoleSecurity || id.Role == RoleAdmin
}
