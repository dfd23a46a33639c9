package session

import "github.com/carebridge/webgateway/internal/domain"

// Client-side route paths the gateway makes decisions about.
const (
	PathHome               = "/"
	PathLogin              = "/login"
	PathRegister           = "/register"
	PathVerifyID           = "/verify-id"
	PathPregnantDashboard  = "/pregnant/dashboard"
	PathCaregiverDashboard = "/caregiver/dashboard"
)

// publicPaths are the routes an already-authenticated user is redirected
// away from after identity resolution.
var publicPaths = map[string]struct{}{
	PathHome:     {},
	PathLogin:    {},
	PathRegister: {},
}

// IsPublicPath reports whether the given path is in the public route set.
func IsPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// RedirectPath is the single source of truth for where a user belongs.
// Every call site that navigates after an auth state change (login,
// registration completion, identity fetch, route guard) must use it.
func RedirectPath(u *domain.User) string {
	if u == nil {
		return PathHome
	}
	if !u.IsVerified {
		return PathVerifyID
	}
	switch u.UserType {
	case domain.UserTypePregnant:
		return PathPregnantDashboard
	case domain.UserTypeCaregiver:
		return PathCaregiverDashboard
	default:
		return PathHome
	}
}
