package enums

// StaffRole separates ordinary staff from administrators.
type StaffRole string

const (
	StaffRoleStaff StaffRole = "staff"
	StaffRoleAdmin StaffRole = "admin"
)

func (r StaffRole) IsValid() bool {
	switch r {
	case StaffRoleStaff, StaffRoleAdmin:
		return true
	default:
		return false
	}
}

// ActorRole widens StaffRole with the customer role used in access tokens.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleStaff    ActorRole = "staff"
	ActorRoleAdmin    ActorRole = "admin"
)

func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleCustomer, ActorRoleStaff, ActorRoleAdmin:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role grants access to staff surfaces.
func (r ActorRole) IsStaff() bool {
	return r == ActorRoleStaff || r == ActorRoleAdmin
}
