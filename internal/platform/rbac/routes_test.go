package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitpipe/console/internal/session/domain"
)

func TestRouteTable_Lookup(t *testing.T) {
	table := NewRouteTable(DefaultRoutes())

	tests := []struct {
		path       string
		wantPrefix string
	}{
		{"/admin/users/42", "/admin/users"},
		{"/admin/usersettings", "/admin"},
		{"/admin", "/admin"},
		{"/candidates/7/notes", "/candidates"},
		{"/login", "/login"},
		{"/loginx", "/"},
		{"/nowhere", "/"},
	}
	for _, tt := range tests {
		r, ok := table.Lookup(tt.path)
		require.True(t, ok, tt.path)
		assert.Equal(t, tt.wantPrefix, r.Prefix, tt.path)
	}

	_, ok := table.Lookup("relative")
	assert.False(t, ok)
}

func TestRouteTable_Resolve(t *testing.T) {
	table := NewRouteTable(DefaultRoutes())
	as := func(r domain.Role) RouteInput { return RouteInput{IsAuthenticated: true, Role: r} }

	assert.Equal(t, Decision{Outcome: Redirect, Path: ElevatedLandingPath}, table.Resolve("/admin/users", as(domain.RoleManager)))
	assert.Equal(t, Decision{Outcome: Render}, table.Resolve("/admin/users", as(domain.RoleAdmin)))
	assert.Equal(t, Decision{Outcome: Redirect, Path: StandardLandingPath}, table.Resolve("/admin/reports", as(domain.RoleRecruiter)))
	assert.Equal(t, Decision{Outcome: Render}, table.Resolve("/candidates", as(domain.RoleRecruiter)))
	assert.Equal(t, Decision{Outcome: Redirect, Path: LoginPath}, table.Resolve("/candidates", RouteInput{}))
	assert.Equal(t, Decision{Outcome: Render}, table.Resolve("/login", RouteInput{}))
	assert.Equal(t, Decision{Outcome: Redirect, Path: StandardLandingPath}, table.Resolve("/forgot-password", as(domain.RoleRecruiter)))
	assert.Equal(t, Decision{Outcome: Pending}, table.Resolve("/jobs", RouteInput{Loading: true}))
}

func TestRouteTable_ResolveIgnoresCallerAllowList(t *testing.T) {
	table := NewRouteTable([]Route{{Prefix: "/open"}})
	in := RouteInput{IsAuthenticated: true, Role: domain.RoleRecruiter, AllowedRoles: []domain.Role{domain.RoleAdmin}}
	assert.Equal(t, Decision{Outcome: Render}, table.Resolve("/open", in))
}
