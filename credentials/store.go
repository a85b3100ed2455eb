package credentials

// Credentials is the entire durable footprint of a session: the token pair
// plus the last-selected company. The access and refresh tokens are always
// written together in one logical update so a reload can never observe a
// mismatched pairing.
type Credentials struct {
	AccessToken    string `json:"accessToken,omitempty"`
	RefreshToken   string `json:"refreshToken,omitempty"`
	ActiveTenantID string `json:"activeTenantId,omitempty"`
}

// Empty reports whether no credentials are stored.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists credentials across process restarts.
type Store interface {
	// Load returns the stored credentials. A store that has never been
	// written returns zero credentials and no error.
	Load() (Credentials, error)
	Save(creds Credentials) error
	Clear() error
}
