package session

import (
	"github.com/expensahq/expensa-go/tenants"
	"github.com/expensahq/expensa-go/users"
)

// Status is the lifecycle state of the client session.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusRefreshing      Status = "refreshing"
)

// Session is the authoritative client-side authentication state. Values
// handed out by the Manager are snapshots; mutating one has no effect on the
// live session.
//
// ActiveTenant is always an element of Tenants or nil, and is non-nil
// whenever Tenants is non-empty and the session is authenticated.
type Session struct {
	User         users.User
	Tenants      []tenants.Tenant
	ActiveTenant *tenants.Tenant
	AccessToken  string
	RefreshToken string
	Status       Status
}

// Authenticated reports whether the session is usable for authorized calls.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusRefreshing
}

// ActiveTenantID returns the active tenant's id, or "" when none is selected.
func (s Session) ActiveTenantID() string {
	if s.ActiveTenant == nil {
		return ""
	}
	return s.ActiveTenant.ID
}

func (s Session) clone() Session {
	out := s
	out.Tenants = append([]tenants.Tenant(nil), s.Tenants...)
	if s.ActiveTenant != nil {
		active := *s.ActiveTenant
		out.ActiveTenant = &active
	}
	return out
}
