package model

// Role2FileType grants a role group access to a file type. Both references
// are nullable in the table.
type Role2FileType struct {
	ID          int  `json:"id" db:"id"`
	RoleGroupID *int `json:"role_group_id" db:"roleGroupId"`
	FileTypeID  *int `json:"file_type_id" db:"fileTypeId"`
}

// Role2FileTypeLink is a (role group, file type) pair without its row id.
type Role2FileTypeLink struct {
	RoleGroupID int `json:"role_group_id"`
	FileTypeID  int `json:"file_type_id"`
}

// Role2FileTypeUpdate changes the fields that are set; nil leaves a column as is.
type Role2FileTypeUpdate struct {
	ID          int  `json:"id"`
	RoleGroupID *int `json:"role_group_id"`
	FileTypeID  *int `json:"file_type_id"`
}

// Role2FileTypeEvent is published on the notification stream after a change.
type Role2FileTypeEvent struct {
	Action string              `json:"action"`
	Links  []Role2FileTypeLink `json:"links,omitempty"`
	Row    *Role2FileType      `json:"row,omitempty"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)
