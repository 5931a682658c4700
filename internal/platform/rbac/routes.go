package rbac

import (
	"sort"
	"strings"

	"recruitpipe/console/internal/session/domain"
)

// Route describes one area of the dashboard.
type Route struct {
	// Prefix matches the path and everything below it.
	Prefix string
	// Public routes are for signed-out users only.
	Public bool
	// AllowedRoles restricts protected routes; nil admits every known role.
	AllowedRoles []domain.Role
}

var elevated = []domain.Role{domain.RoleAdmin, domain.RoleManager}

// DefaultRoutes is the dashboard's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Prefix: LoginPath, Public: true},
		{Prefix: ForgotPasswordPath, Public: true},
		{Prefix: "/admin", AllowedRoles: elevated},
		{Prefix: "/admin/users", AllowedRoles: []domain.Role{domain.RoleAdmin}},
		{Prefix: "/admin/invoices", AllowedRoles: elevated},
		{Prefix: "/admin/reports", AllowedRoles: elevated},
		{Prefix: "/recruiter", AllowedRoles: []domain.Role{domain.RoleRecruiter}},
		{Prefix: "/candidates"},
		{Prefix: "/clients"},
		{Prefix: "/jobs"},
		{Prefix: "/messages"},
		{Prefix: "/settings"},
		{Prefix: "/settings/password"},
		{Prefix: "/"},
	}
}

// RouteTable resolves paths to routes by longest matching prefix.
type RouteTable struct {
	routes []Route
}

// NewRouteTable returns a table over routes.
func NewRouteTable(routes []Route) *RouteTable {
	rs := append([]Route(nil), routes...)
	sort.SliceStable(rs, func(i, j int) bool { return len(rs[i].Prefix) > len(rs[j].Prefix) })
	return &RouteTable{routes: rs}
}

// Lookup returns the most specific route for path.
func (t *RouteTable) Lookup(path string) (Route, bool) {
	for _, r := range t.routes {
		if matches(r.Prefix, path) {
			return r, true
		}
	}
	return Route{}, false
}

// Resolve applies the public or protected gate for path. Unlisted paths are protected with no
// role restriction.
func (t *RouteTable) Resolve(path string, in RouteInput) Decision {
	r, ok := t.Lookup(path)
	if ok && r.Public {
		return PublicRoute(in)
	}
	in.AllowedRoles = nil
	if ok {
		in.AllowedRoles = r.AllowedRoles
	}
	return ProtectedRoute(in)
}

func matches(prefix, path string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
