package auth

import "strings"

// AdminPolicy decides which sessions carry administrator rights.
type AdminPolicy struct {
	roles  map[string]struct{}
	emails map[string]struct{}
}

// NewAdminPolicy builds a policy from role names and email addresses, both matched case-insensitively.
func NewAdminPolicy(roles []string, emails []string) AdminPolicy {
	policy := AdminPolicy{
		roles:  make(map[string]struct{}, len(roles)),
		emails: make(map[string]struct{}, len(emails)),
	}
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			policy.roles[normalized] = struct{}{}
		}
	}
	for _, email := range emails {
		if normalized := strings.ToLower(strings.TrimSpace(email)); normalized != "" {
			policy.emails[normalized] = struct{}{}
		}
	}
	return policy
}

// IsAdmin reports whether the claims hold a configured admin role or admin email.
func (policy AdminPolicy) IsAdmin(claims SessionClaims) bool {
	for _, role := range claims.UserRoles {
		if _, ok := policy.roles[strings.ToLower(strings.TrimSpace(role))]; ok {
			return true
		}
	}
	email := strings.ToLower(strings.TrimSpace(claims.UserEmail))
	if email == "" {
		return false
	}
	_, ok := policy.emails[email]
	return ok
}
