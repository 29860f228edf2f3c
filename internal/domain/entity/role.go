package entity

// Roles carried in the authenticated identity supplied by the auth
// boundary. The core trusts the role claim without re-validating
// credentials.
const (
	RoleAdmin   = "ADMIN"
	RolePatient = "PATIENT"
)
