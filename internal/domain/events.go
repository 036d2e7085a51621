package domain

// LevelChangedEvent is published whenever the permission level is set.
type LevelChangedEvent struct {
	From   PermissionLevel `json:"from"`
	To     PermissionLevel `json:"to"`
	Scheme Scheme          `json:"scheme"`
}
