package models

import "time"

// WatchedRepo tracks the polling state of a git repository.
type WatchedRepo struct {
	Name        string `gorm:"primaryKey;size:128"`
	LastScanned *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommitFix is a commit whose footers reference tracker issues,
// recorded per issue key.
type CommitFix struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Repo       string `gorm:"size:128;index"`
	Branch     string `gorm:"size:128"`
	SHA1       string `gorm:"size:40;index"`
	Author     string `gorm:"size:128"`
	Subject    string `gorm:"size:512"`
	Version    string `gorm:"size:32"`
	IssueKey   string `gorm:"size:32;index"`
	FooterType string `gorm:"size:16"` // "fixes" or "task-number"
	CreatedAt  time.Time
}

// NotificationLog records a delivered chat notification, keyed per
// platform so the same event is not re-sent anywhere.
type NotificationLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	EventKey  string `gorm:"size:128;uniqueIndex:idx_notification_event_platform"`
	Platform  string `gorm:"size:16;uniqueIndex:idx_notification_event_platform"`
	Title     string `gorm:"size:256"`
	CreatedAt time.Time
}
