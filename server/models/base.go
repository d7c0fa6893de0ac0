package models

import (
	"strings"
	"time"
)

type BaseModel struct {
	ID        uint      `json:"id,omitempty" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// containsPattern builds the case-folded LIKE pattern used by the
// name search queries i.e. match anywhere in the column.
func containsPattern(query string) string {
	return "%" + strings.ToLower(query) + "%"
}
