package domain

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	UserID   UserID `json:"userId"`
	Role     Role   `json:"role"`
	JoinedAt int64  `json:"joinedAt"`
}
