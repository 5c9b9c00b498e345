package model

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord persists a snapshot of one onboarding session so it survives
// a restart. State holds the serialized WorkflowState.
type SessionRecord struct {
	ID           string         `gorm:"type:varchar(100);column:id;primaryKey;not null" json:"id"`
	Subject      string         `gorm:"type:varchar(100);column:subject;index;not null" json:"subject"`
	PotFactoryID string         `gorm:"type:varchar(100);column:pot_factory_id" json:"pot_factory_id"`
	UserID       string         `gorm:"type:varchar(100);column:user_id;index" json:"user_id"`
	State        datatypes.JSON `gorm:"type:jsonb;column:state;not null" json:"state"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the database table name for SessionRecord
func (s *SessionRecord) TableName() string {
	return "workflow_sessions"
}
