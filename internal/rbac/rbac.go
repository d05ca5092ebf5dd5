package rbac

type Role string
type Action string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	// ActionRead covers listing and viewing organization data.
	ActionRead Action = "read"
	// ActionWrite covers creating and editing keywords and negotiations.
	ActionWrite Action = "write"
	// ActionDeleteOwn deletes a keyword or negotiation the caller created.
	ActionDeleteOwn Action = "delete_own"
	// ActionDeleteAny deletes any keyword or negotiation.
	ActionDeleteAny Action = "delete_any"
	// ActionManage covers org settings, members, invitations and integrations.
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionWrite || action == ActionDeleteOwn
	default:
		return false
	}
}

// CanDelete reports whether role may delete a row created by creatorID.
func CanDelete(role Role, userID, creatorID string) bool {
	if Can(role, ActionDeleteAny) {
		return true
	}
	return Can(role, ActionDeleteOwn) && userID != "" && userID == creatorID
}

// Normalize maps unknown roles to member.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}

func Valid(role string) bool {
	return Role(role) == RoleMember || Role(role) == RoleAdmin
}
