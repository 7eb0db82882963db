// Package session owns the authenticated identity for a client process:
// who is logged in, with what role, and with what credential. The session
// is persisted so it survives restarts, and route guards consult it before
// rendering any protected view.
package session

// RoleNone is the sentinel returned by CurrentRole when nobody is logged in.
const RoleNone = "none"

var knownRoles = map[string]bool{
	"student": true,
	"driver":  true,
	"parent":  true,
	"admin":   true,
}

type User struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Session is the credential plus the user it belongs to. The zero value is
// the unauthenticated session.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// IsAuthenticated reports whether the session carries both a credential and
// a user with a known role. Anything else grants no access.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil && knownRoles[s.User.Role]
}

// Role returns the session's role, or RoleNone when unauthenticated.
func (s Session) Role() string {
	if !s.IsAuthenticated() {
		return RoleNone
	}
	return s.User.Role
}
