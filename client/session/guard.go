package session

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/login"

var roleHome = map[string]string{
	"student": "/student",
	"driver":  "/driver",
	"parent":  "/parent",
	"admin":   "/admin",
}

// Decision is the outcome of a route-guard check.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Guard checks entry to the view owned by requiredRole. Unauthenticated
// users redirect to the login entry point; a user with the wrong role
// redirects to their own role's home, never to a fixed fallback that could
// loop.
func (m *Manager) Guard(requiredRole string) Decision {
	sess := m.Current()
	if !sess.IsAuthenticated() {
		return Decision{RedirectTo: LoginPath}
	}
	role := sess.User.Role
	if role != requiredRole {
		return Decision{RedirectTo: roleHome[role]}
	}
	return Decision{Allow: true}
}

// HomeFor returns the entry point for a role, or the login path for any
// unknown role.
func HomeFor(role string) string {
	if home, ok := roleHome[role]; ok {
		return home
	}
	return LoginPath
}
