package auth

const (
	RoleAdmin     = "admin"
	adminUsername = "admin"
)

// Identity is the caller decoded from a verified token.
type Identity struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (id Identity) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range id.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin: the "admin" role or the built-in admin account.
func (id Identity) IsAdmin() bool {
	if id.Username == adminUsername {
		return true
	}
	return id.HasAnyRole(RoleAdmin)
}
