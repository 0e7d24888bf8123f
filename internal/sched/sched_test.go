package sched

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/signalbox/internal/gitscan"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
)

func openSchedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.WatchedRepo{}, &models.CommitFix{}, &models.NotificationLog{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestAdd_RejectsBadExpression(t *testing.T) {
	s := New()
	if err := s.Add("not a cron line", func() {}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if err := s.Add("*/15 * * * *", func() {}); err != nil {
		t.Fatalf("unexpected error for valid 5-field expression: %v", err)
	}
	// 6-field (with seconds) expressions are not accepted.
	if err := s.Add("0 */15 * * * *", func() {}); err == nil {
		t.Fatal("expected error for 6-field expression")
	}
}

func TestNextAfter(t *testing.T) {
	d := NextAfter("* * * * *")
	if d <= 0 || d > time.Minute {
		t.Errorf("NextAfter(every minute) = %v, want within (0, 1m]", d)
	}
	if d := NextAfter("broken"); d != 0 {
		t.Errorf("NextAfter(broken) = %v, want 0", d)
	}
}

func TestStartStop(t *testing.T) {
	s := New()
	fired := make(chan struct{}, 1)
	if err := s.Add("* * * * *", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Stop()
}

func fixWith(keys []string, taskKeys []string) gitscan.FixedByTag {
	return gitscan.FixedByTag{
		Repo:        "qt/qtbase",
		Branch:      "5.12",
		SHA1:        "abcdef0123456789abcdef0123456789abcdef01",
		Author:      "Jane Dev",
		Subject:     "Fix crash on resize",
		Version:     "5.12.6",
		Fixes:       keys,
		TaskNumbers: taskKeys,
	}
}

func TestRecordFix_StoresPerIssueKey(t *testing.T) {
	db := openSchedTestDB(t)
	opts := PollOpts{DB: db}

	fix := fixWith([]string{"QTBUG-1", "QTBUG-2"}, []string{"QTBUG-3"})
	if err := recordFix(context.Background(), fix, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rows []models.CommitFix
	if err := db.Order("issue_key").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0].FooterType != "fixes" || rows[2].FooterType != "task-number" {
		t.Errorf("footer types = %q, %q, %q", rows[0].FooterType, rows[1].FooterType, rows[2].FooterType)
	}
	if rows[0].Version != "5.12.6" {
		t.Errorf("Version = %q, want 5.12.6", rows[0].Version)
	}
}

func TestRecordFix_DedupsAcrossPasses(t *testing.T) {
	db := openSchedTestDB(t)
	opts := PollOpts{DB: db}

	fix := fixWith([]string{"QTBUG-1"}, nil)
	if err := recordFix(context.Background(), fix, opts); err != nil {
		t.Fatal(err)
	}
	if err := recordFix(context.Background(), fix, opts); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.CommitFix{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1 after repeated pass", count)
	}
}

func TestRecordFix_NotifiesFixesOnly(t *testing.T) {
	db := openSchedTestDB(t)
	mock := &notify.MockNotifier{}
	opts := PollOpts{
		DB:         db,
		Dispatcher: &notify.Dispatcher{DB: db, Notifiers: []notify.Notifier{mock}},
	}

	fix := fixWith([]string{"QTBUG-1"}, []string{"QTBUG-2"})
	if err := recordFix(context.Background(), fix, opts); err != nil {
		t.Fatal(err)
	}

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1 (Task-number footers stay quiet)", len(sent))
	}
	if sent[0].Title != "QTBUG-1 closed by qt/qtbase" {
		t.Errorf("Title = %q", sent[0].Title)
	}
}

func TestTouchWatched(t *testing.T) {
	db := openSchedTestDB(t)
	if err := db.Create(&models.WatchedRepo{Name: "qt/qtbase"}).Error; err != nil {
		t.Fatal(err)
	}

	if err := touchWatched(db, "qt/qtbase"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var repo models.WatchedRepo
	if err := db.First(&repo, "name = ?", "qt/qtbase").Error; err != nil {
		t.Fatal(err)
	}
	if repo.LastScanned == nil {
		t.Error("LastScanned = nil, want a timestamp")
	}
}
