package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the operator token claims accepted by the dialer API.
// OrganizationID scopes which campaigns the caller may dispatch; super_admin
// is checked server-side, never inferred from a missing organization.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}
