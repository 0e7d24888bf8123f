package models

import "time"

// Build statuses.
const (
	BuildStatusPending    = "pending"
	BuildStatusClassified = "classified"
	BuildStatusRetried    = "retried"
)

// Build is one scanned CI build.
type Build struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Project   string `gorm:"size:64;index"`
	Branch    string `gorm:"size:128"`
	URL       string `gorm:"size:512"`
	Platform  string `gorm:"size:64"`
	Status    string `gorm:"size:16;default:pending;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Classifications []Classification `gorm:"foreignKey:BuildID"`
	RetryAttempts   []RetryAttempt   `gorm:"foreignKey:BuildID"`
}

// Classification is the engine's verdict for one build log.
type Classification struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	BuildID     uint   `gorm:"index"`
	RuleName    string `gorm:"size:64;index"`
	Detail      string `gorm:"type:text"`
	ShouldRetry bool
	Summary     string `gorm:"type:text"`
	CreatedAt   time.Time
}

// RetryAttempt records an automatic retry issued for a build.
type RetryAttempt struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	BuildID   uint   `gorm:"index"`
	Attempt   int
	Outcome   string `gorm:"size:16"` // "pass", "fail", "pending"
	CreatedAt time.Time
}
