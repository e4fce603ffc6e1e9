package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency records the response of a completed mutating request, keyed by
// (username, scope, key). Scope is the route template, so the same key may be
// reused across different endpoints. Replays return Response verbatim without
// re-running side effects.
type Idempotency struct {
	ID        string         `gorm:"type:char(36);primaryKey"`
	Username  string         `gorm:"type:varchar(255);not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string         `gorm:"type:varchar(255);not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string         `gorm:"type:varchar(255);not null;uniqueIndex:ux_user_scope_key,priority:3"`
	Status    int            `gorm:"not null"`
	Response  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time      `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
