package domain

import "time"

// Metadata is a key/value row for counters and tunables.
// Counter rows use Counter, document rows use Value.
type Metadata struct {
	Key       string    `gorm:"column:meta_key;primaryKey;size:64"`
	Value     string    `gorm:"column:meta_value;type:text"`
	Counter   int64     `gorm:"column:meta_counter;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name
func (Metadata) TableName() string {
	return "metadata"
}

// Keys of well known metadata rows
const (
	MetaNextMemberNumber = "next_member_number"
	MetaSystemConfig     = "system_config"
)

// Models lists every table managed by AutoMigrate
func Models() []any {
	return []any{&User{}, &Transaction{}, &Notice{}, &Notification{}, &PushSubscription{}, &Metadata{}}
}
