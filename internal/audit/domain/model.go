package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Actions recorded by the addon mutator.
const (
	ActionAssign    = "addon.assign"
	ActionUnassign  = "addon.unassign"
	ActionSave      = "addon.save"
	ActionBatchSave = "addon.batch_save"
	ActionReorder   = "addon.reorder"
)

const (
	TargetAssignment  = "assignment"
	TargetHostProduct = "host_product"
)

// AuditLog is one recorded mutation against the remote addon resource.
type AuditLog struct {
	ID         int64             `json:"id" gorm:"primaryKey"`
	BranchID   string            `json:"branch_id" gorm:"type:text;index"`
	Action     string            `json:"action" gorm:"type:text;not null;index"`
	TargetType string            `json:"target_type" gorm:"type:text;not null"`
	TargetID   string            `json:"target_id" gorm:"type:text;index"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
