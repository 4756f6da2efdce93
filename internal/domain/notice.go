package domain

import "time"

// NoticeType is the category badge of a notice
type NoticeType string

const (
	NoticeImportant NoticeType = "IMPORTANT"
	NoticeNotice    NoticeType = "NOTICE"
	NoticeInfo      NoticeType = "INFO"
	NoticeEvent     NoticeType = "EVENT"
	NoticeUpdate    NoticeType = "UPDATE"
)

// Valid reports whether t is a known notice type
func (t NoticeType) Valid() bool {
	switch t {
	case NoticeImportant, NoticeNotice, NoticeInfo, NoticeEvent, NoticeUpdate:
		return true
	}
	return false
}

// Notice Model
type Notice struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Type       NoticeType `gorm:"size:20;not null" json:"type"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	AuthorID   uint       `gorm:"index" json:"author_id"`
	AuthorName string     `gorm:"size:100" json:"author_name"`
	ViewCount  int64      `gorm:"not null;default:0" json:"view_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
