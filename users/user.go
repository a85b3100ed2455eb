package users

// User is the identity record for the authenticated caller, as carried in
// the access token's claims and returned by the login endpoint.
type User struct {
	ID        string `json:"id,omitempty"`        // Unique identifier for the user
	Email     string `json:"email,omitempty"`     // User's email address
	FirstName string `json:"firstName,omitempty"` // First name of the user
	LastName  string `json:"lastName,omitempty"`  // Last name of the user
}

// FullName returns the user's display name
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
