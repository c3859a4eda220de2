package audit

import "time"

type Action string

const (
	ActionPersonCreated       Action = "person_created"
	ActionPersonUpdated       Action = "person_updated"
	ActionPersonDeleted       Action = "person_deleted"
	ActionSectorCreated       Action = "sector_created"
	ActionSectorUpdated       Action = "sector_updated"
	ActionSectorDeleted       Action = "sector_deleted"
	ActionOrganizationCreated Action = "organization_created"
	ActionOrganizationUpdated Action = "organization_updated"
	ActionOrganizationDeleted Action = "organization_deleted"

	ActionUserRegistered Action = "user_registered"
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionLoginLocked    Action = "login_locked"
	ActionLogout         Action = "logout"
	ActionRoleChanged    Action = "role_changed"
	ActionProfileUpdated Action = "profile_updated"
	ActionPhotoUploaded  Action = "photo_uploaded"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// ActorID is the user performing the action; empty for anonymous calls
	// such as a failed login.
	ActorID string `json:"actor_id,omitempty"`
	// Subject is the id of the record acted upon.
	Subject   string `json:"subject,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
