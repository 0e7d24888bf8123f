package sched

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/gitscan"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
)

// PollOpts holds dependencies for a watched-repo poll pass.
type PollOpts struct {
	DB         *gorm.DB
	Watch      config.WatchConfig
	Dispatcher *notify.Dispatcher // optional
}

// PollRepos scans every watched repository for new commits carrying
// issue footers, records them, and notifies. Failures in one repo do
// not stop the others.
func PollRepos(ctx context.Context, opts PollOpts) error {
	var firstErr error
	for _, name := range opts.Watch.Repos {
		if err := pollOne(ctx, name, opts); err != nil {
			log.Printf("sched: poll %s: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func pollOne(ctx context.Context, name string, opts PollOpts) error {
	repo := &gitscan.Repository{
		Name:     name,
		RepoBase: opts.Watch.RepoBase,
		WorkDir:  opts.Watch.WorkDir,
	}

	lock, err := repo.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	changes, err := repo.NewChanges(ctx, "")
	if err != nil {
		return err
	}

	for _, change := range changes {
		fixes, err := repo.ParseCommits(ctx, change)
		if err != nil {
			return err
		}
		for _, fix := range fixes {
			if err := recordFix(ctx, fix, opts); err != nil {
				return err
			}
		}
	}

	return touchWatched(opts.DB, name)
}

// recordFix stores one footer-carrying commit per issue key and
// dispatches a notification for each new row.
func recordFix(ctx context.Context, fix gitscan.FixedByTag, opts PollOpts) error {
	rows := make([]models.CommitFix, 0, len(fix.Fixes)+len(fix.TaskNumbers))
	for _, key := range fix.Fixes {
		rows = append(rows, commitFixRow(fix, key, "fixes"))
	}
	for _, key := range fix.TaskNumbers {
		rows = append(rows, commitFixRow(fix, key, "task-number"))
	}

	for _, row := range rows {
		// Skip rows already recorded in an earlier pass.
		var count int64
		opts.DB.Model(&models.CommitFix{}).
			Where("sha1 = ? AND issue_key = ?", row.SHA1, row.IssueKey).
			Count(&count)
		if count > 0 {
			continue
		}
		if err := opts.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("sched: record fix %s/%s: %w", row.SHA1, row.IssueKey, err)
		}
		if opts.Dispatcher != nil && row.FooterType == "fixes" {
			if err := opts.Dispatcher.Dispatch(ctx, notify.FixEvent(row)); err != nil {
				log.Printf("sched: notify fix %s: %v", row.IssueKey, err)
			}
		}
	}
	return nil
}

func commitFixRow(fix gitscan.FixedByTag, issueKey, footerType string) models.CommitFix {
	return models.CommitFix{
		Repo:       fix.Repo,
		Branch:     fix.Branch,
		SHA1:       fix.SHA1,
		Author:     fix.Author,
		Subject:    fix.Subject,
		Version:    fix.Version,
		IssueKey:   issueKey,
		FooterType: footerType,
	}
}

func touchWatched(db *gorm.DB, name string) error {
	now := time.Now()
	err := db.Model(&models.WatchedRepo{}).Where("name = ?", name).
		Update("last_scanned", &now).Error
	if err != nil {
		return fmt.Errorf("sched: update watched repo %s: %w", name, err)
	}
	return nil
}
