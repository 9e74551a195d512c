package settings

import "time"

// WorkflowSettings is a single-row configuration table controlling which
// steps of the lab workflow are enabled. It is read fresh on every request
// that consults it, never cached, so a toggle takes effect immediately.
type WorkflowSettings struct {
	EnableSampleCollection bool      `json:"enable_sample_collection"`
	EnableSampleReceive    bool      `json:"enable_sample_receive"`
	EnableVerification     bool      `json:"enable_verification"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// RolePermission holds the action grants for one role.
type RolePermission struct {
	Role            string    `json:"role"`
	CanRegister     bool      `json:"can_register"`
	CanCollect      bool      `json:"can_collect"`
	CanEnterResult  bool      `json:"can_enter_result"`
	CanVerify       bool      `json:"can_verify"`
	CanPublish      bool      `json:"can_publish"`
	CanEditCatalog  bool      `json:"can_edit_catalog"`
	CanEditSettings bool      `json:"can_edit_settings"`
	UpdatedAt       time.Time `json:"updated_at"`
}
