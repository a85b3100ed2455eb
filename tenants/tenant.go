package tenants

// Tenant represents a company the user belongs to. Data scoping on the
// platform is per-company; Role is the user's role within that company.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Find returns the membership with the given id, if present.
func Find(memberships []Tenant, id string) (Tenant, bool) {
	for _, m := range memberships {
		if m.ID == id {
			return m, true
		}
	}
	return Tenant{}, false
}
