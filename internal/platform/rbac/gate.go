// Package rbac decides whether a route renders or redirects for the current session.
// LandingFor is the only place that knows which role belongs to which tier.
package rbac

import (
	"recruitpipe/console/internal/session/domain"
)

// Entry points.
const (
	LoginPath           = "/login"
	ForgotPasswordPath  = "/forgot-password"
	ElevatedLandingPath = "/admin/dashboard"
	StandardLandingPath = "/recruiter/dashboard"
)

// Outcome is what the view layer should do with a route.
type Outcome int

const (
	// Pending means the session is still loading; show a neutral placeholder.
	Pending Outcome = iota
	// Render means show the requested content.
	Render
	// Redirect means navigate to Decision.Path instead.
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the gate's answer. Path is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Path    string
}

// RouteInput is everything a gate looks at. A nil AllowedRoles admits every known role.
type RouteInput struct {
	Loading         bool
	IsAuthenticated bool
	Role            domain.Role
	AllowedRoles    []domain.Role
}

// Tier groups roles that share a landing page.
type Tier int

const (
	// TierNone is an unrecognized role; it is unauthorized everywhere.
	TierNone Tier = iota
	TierStandard
	TierElevated
)

// TierOf returns the tier of role.
func TierOf(role domain.Role) Tier {
	switch role {
	case domain.RoleAdmin, domain.RoleManager:
		return TierElevated
	case domain.RoleRecruiter:
		return TierStandard
	}
	return TierNone
}

// LandingFor returns the default page after authentication for role. Unknown roles land on
// the login page.
func LandingFor(role domain.Role) string {
	switch TierOf(role) {
	case TierElevated:
		return ElevatedLandingPath
	case TierStandard:
		return StandardLandingPath
	}
	return LoginPath
}

// ProtectedRoute gates content that needs a session and, optionally, one of AllowedRoles.
func ProtectedRoute(in RouteInput) Decision {
	switch {
	case in.Loading:
		return Decision{Outcome: Pending}
	case !in.IsAuthenticated:
		return redirect(LoginPath)
	case !in.Role.Known():
		return redirect(LoginPath)
	case in.AllowedRoles != nil && !contains(in.AllowedRoles, in.Role):
		return redirect(LandingFor(in.Role))
	}
	return Decision{Outcome: Render}
}

// PublicRoute gates pages only meant for signed-out users (login, forgot password). A signed-in
// user is sent to their landing page so they never re-authenticate in a loop.
func PublicRoute(in RouteInput) Decision {
	switch {
	case in.Loading:
		return Decision{Outcome: Pending}
	case in.IsAuthenticated && in.Role.Known():
		return redirect(LandingFor(in.Role))
	}
	return Decision{Outcome: Render}
}

func redirect(path string) Decision {
	return Decision{Outcome: Redirect, Path: path}
}

func contains(roles []domain.Role, r domain.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
