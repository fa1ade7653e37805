// internal/models/admin.go
package models

type AuditLog struct {
	BaseModel
	ActorID      string `json:"actor_id" gorm:"size:64;index"`
	Action       string `json:"action" gorm:"size:100;not null;index"`
	ResourceType string `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string `json:"resource_id,omitempty" gorm:"size:64;index"`
	NewValues    JSONB  `json:"new_values" gorm:"type:jsonb"`
	StatusCode   int    `json:"status_code"`
	IPAddress    string `json:"ip_address" gorm:"size:45"`
	UserAgent    string `json:"user_agent" gorm:"type:text"`
}
