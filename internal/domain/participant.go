package domain

import "time"

type Role string

const (
	RoleTutor    Role = "tutor"
	RoleStudent  Role = "student"
	RoleObserver Role = "observer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTutor, RoleStudent, RoleObserver:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// CanPost reports whether the role may author room messages. Checkpoints
// switch exhaustively so a new role cannot slip past authorization.
func (r Role) CanPost() bool {
	switch r {
	case RoleTutor, RoleStudent:
		return true
	case RoleObserver:
		return false
	}
	return false
}

// Participant is a live, connection-bound membership record. It is not a
// durable row of its own; lifetime is bounded by the socket connection and
// the presence tracker owns the active set.
type Participant struct {
	UserID   string     `json:"userId"`
	Role     Role       `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
	IsActive bool       `json:"isActive"`
}
