package enum

// Role is the caller role resolved by the upstream gateway.
type Role uint8

const (
	_role_beg Role = iota
	RoleMaster
	RoleUser
	RoleMock
	_role_end
)

var roleNames = names{"", "MASTER", "USER", "MOCK"}

func (r Role) IsAvailable() bool {
	return r > _role_beg && r < _role_end
}

// CanMutate reports whether the role may change ledger state. MOCK callers
// are read-only.
func (r Role) CanMutate() bool {
	return r == RoleMaster || r == RoleUser
}

func (r Role) String() string { return roleNames.text(uint8(r)) }

func ParseRole(s string) (Role, bool) {
	i, ok := roleNames.parse(s)
	return Role(i), ok
}
