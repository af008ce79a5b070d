package auth

// HasAnyRole returns true if the role set contains at least one of the
// required roles. An empty required list matches nothing.
func HasAnyRole(held []Role, required ...Role) bool {
	for _, r := range required {
		for _, h := range held {
			if h == r {
				return true
			}
		}
	}
	return false
}

// HasAllRoles returns true if the role set contains every required role.
// An empty required list is trivially satisfied.
func HasAllRoles(held []Role, required ...Role) bool {
	for _, r := range required {
		found := false
		for _, h := range held {
			if h == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeRoles validates a role set: it must be non-empty, every role must
// be in the catalog, and duplicates are removed preserving order.
func NormalizeRoles(roles []Role) ([]Role, error) {
	if len(roles) == 0 {
		return nil, ErrEmptyRoleSet
	}

	seen := make(map[Role]bool, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !IsValidRole(r) {
			return nil, ErrInvalidRole
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}
