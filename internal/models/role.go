package models

// Role identifies which side of the federation a user acts for.
type Role string

const (
	RoleClubManager       Role = "CLUB_MANAGER"
	RoleFederationManager Role = "FEDERATION_MANAGER"
	RoleAthlete           Role = "ATHLETE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClubManager, RoleFederationManager, RoleAthlete:
		return true
	}
	return false
}
