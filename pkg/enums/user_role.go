package enums

// UserRole is the account type attached to every user.
type UserRole string

const (
	UserRolePatient         UserRole = "patient"
	UserRoleDoctor          UserRole = "doctor"
	UserRoleLaboratory      UserRole = "laboratory"
	UserRoleDeliveryPartner UserRole = "deliverypartner"
	UserRoleAdmin           UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRolePatient,
	UserRoleDoctor,
	UserRoleLaboratory,
	UserRoleDeliveryPartner,
	UserRoleAdmin,
}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return member(r, validUserRoles)
}

// SelfRegistrable reports whether the role can be chosen at sign up.
func (r UserRole) SelfRegistrable() bool {
	return r.IsValid() && r != UserRoleAdmin
}

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", value, validUserRoles)
}
