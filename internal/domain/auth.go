package domain

// Role differentiates the privileges of a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// AnonymousActorID identifies callers that supplied no identity.
const AnonymousActorID = "anonymous"

// ParseRole maps a raw role string to a Role, falling back to RoleUser.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAgent:
		return RoleAgent
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Actor is the trusted (id, role) pair attached to every request.
type Actor struct {
	ID   string
	Role Role
}

// AnonymousActor is used when no identity accompanies a request.
func AnonymousActor() Actor {
	return Actor{ID: AnonymousActorID, Role: RoleUser}
}

// IsStaff reports whether the actor may change status and assignment.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAgent || a.Role == RoleAdmin
}

// IsAdmin reports whether the actor may change SLA settings.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
