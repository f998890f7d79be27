package models

type Role string

const (
	RoleUser       Role = "user"
	RoleConsultant Role = "consultant"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

// Actor is the authenticated caller. For consultants ID is the consultant id,
// for everybody else it is the user id.
type Actor struct {
	ID   uint `json:"id"`
	Role Role `json:"role"`
}

// SystemActor is used by background jobs.
var SystemActor = Actor{Role: RoleSystem}

func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}
