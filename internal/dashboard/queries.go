package dashboard

import (
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/signalbox/internal/models"
)

// BuildRow holds build data joined with its latest classification for
// display.
type BuildRow struct {
	ID          uint
	Project     string
	Branch      string
	Platform    string
	Status      string
	RuleName    string
	ShouldRetry bool
	Summary     string
	CreatedAt   time.Time
}

// RecentBuilds returns the latest builds, newest first.
func RecentBuilds(db *gorm.DB, limit int) ([]BuildRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var builds []models.Build
	if err := db.Preload("Classifications").Order("id DESC").Limit(limit).Find(&builds).Error; err != nil {
		return nil, err
	}

	rows := make([]BuildRow, len(builds))
	for i, b := range builds {
		rows[i] = BuildRow{
			ID:        b.ID,
			Project:   b.Project,
			Branch:    b.Branch,
			Platform:  b.Platform,
			Status:    b.Status,
			CreatedAt: b.CreatedAt,
		}
		if len(b.Classifications) > 0 {
			latest := b.Classifications[len(b.Classifications)-1]
			rows[i].RuleName = latest.RuleName
			rows[i].ShouldRetry = latest.ShouldRetry
			rows[i].Summary = latest.Summary
		}
	}
	return rows, nil
}

// BuildDetail returns one build with all its classifications and retries.
func BuildDetail(db *gorm.DB, id uint) (*models.Build, error) {
	var build models.Build
	err := db.Preload("Classifications").Preload("RetryAttempts").First(&build, id).Error
	if err != nil {
		return nil, err
	}
	return &build, nil
}

// RuleHitCount holds per-rule match statistics.
type RuleHitCount struct {
	RuleName string
	Hits     int64
}

// RuleStats returns classification counts grouped by rule, most
// frequent first.
func RuleStats(db *gorm.DB) ([]RuleHitCount, error) {
	var stats []RuleHitCount
	err := db.Model(&models.Classification{}).
		Select("rule_name, COUNT(*) as hits").
		Group("rule_name").
		Order("hits DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
