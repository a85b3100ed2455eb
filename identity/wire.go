package identity

import (
	"encoding/json"

	"github.com/expensahq/expensa-go/tenants"
	"github.com/expensahq/expensa-go/users"
)

// wireTenant tolerates the platform sending company ids as either strings or
// numbers.
type wireTenant struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Role string      `json:"role"`
}

func (w wireTenant) toTenant() tenants.Tenant {
	return tenants.Tenant{
		ID:   w.ID.String(),
		Name: w.Name,
		Role: w.Role,
	}
}

type wireUser struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
}

func (w wireUser) toUser() users.User {
	return users.User{
		ID:        w.ID.String(),
		Email:     w.Email,
		FirstName: w.FirstName,
		LastName:  w.LastName,
	}
}

type loginResponse struct {
	User         wireUser     `json:"user"`
	Companies    []wireTenant `json:"companies"`
	Company      *wireTenant  `json:"company,omitempty"` // register returns a single company
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (r loginResponse) toLoginResult() *LoginResult {
	memberships := make([]tenants.Tenant, 0, len(r.Companies))
	for _, company := range r.Companies {
		memberships = append(memberships, company.toTenant())
	}
	if len(memberships) == 0 && r.Company != nil {
		memberships = append(memberships, r.Company.toTenant())
	}
	return &LoginResult{
		User:    r.User.toUser(),
		Tenants: memberships,
		TokenPair: TokenPair{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
		},
	}
}
