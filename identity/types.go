package identity

import (
	"github.com/expensahq/expensa-go/tenants"
	"github.com/expensahq/expensa-go/users"
)

// TokenPair is a freshly issued credential pair. RefreshToken is empty when
// the identity service did not rotate it; the caller keeps the stored one.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// LoginResult is the full payload of a successful credential exchange.
type LoginResult struct {
	User    users.User       `json:"user"`
	Tenants []tenants.Tenant `json:"companies"`
	TokenPair
}

// Registration is the payload for creating a new account. CompanyName is
// optional; the service derives one from the first name when omitted.
type Registration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName,omitempty"`
}
