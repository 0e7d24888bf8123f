package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/signalbox/internal/classify"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/rules"
)

func openNotifyTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.NotificationLog{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestDispatch_FansOut(t *testing.T) {
	a := &MockNotifier{}
	b := &MockNotifier{}
	d := &Dispatcher{Notifiers: []Notifier{a, b}}

	evt := Event{Key: "build-1", Title: "qtbase build failed", Severity: SeverityError}
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.Sent()) != 1 || len(b.Sent()) != 1 {
		t.Errorf("sent counts = %d, %d; want 1, 1", len(a.Sent()), len(b.Sent()))
	}
}

func TestDispatch_BestEffort(t *testing.T) {
	failing := &MockNotifier{Err: errors.New("socket closed")}
	working := &MockNotifier{}
	d := &Dispatcher{Notifiers: []Notifier{failing, working}}

	err := d.Dispatch(context.Background(), Event{Key: "build-2", Title: "t"})
	if err == nil {
		t.Fatal("expected the failing notifier's error")
	}
	if !strings.Contains(err.Error(), "socket closed") {
		t.Errorf("error = %q", err.Error())
	}
	if len(working.Sent()) != 1 {
		t.Error("working notifier skipped because another failed")
	}
}

func TestDispatch_DedupsByKey(t *testing.T) {
	db := openNotifyTestDB(t)
	mock := &MockNotifier{}
	d := &Dispatcher{DB: db, Notifiers: []Notifier{mock}}

	evt := Event{Key: "build-3", Title: "qtbase build failed"}
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	if got := len(mock.Sent()); got != 1 {
		t.Errorf("sent count = %d, want 1 (second dispatch deduped)", got)
	}

	var count int64
	db.Model(&models.NotificationLog{}).Count(&count)
	if count != 1 {
		t.Errorf("notification log rows = %d, want 1", count)
	}
}

func TestDispatch_RecordsPerPlatform(t *testing.T) {
	db := openNotifyTestDB(t)
	slack := &MockNotifier{Name: "slack"}
	discord := &MockNotifier{Name: "discord"}
	d := &Dispatcher{DB: db, Notifiers: []Notifier{slack, discord}}

	evt := Event{Key: "build-7", Title: "qtbase build failed"}
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var logs []models.NotificationLog
	db.Order("platform").Find(&logs)
	if len(logs) != 2 {
		t.Fatalf("notification log rows = %d, want one per platform", len(logs))
	}
	if logs[0].Platform != "discord" || logs[1].Platform != "slack" {
		t.Errorf("platforms = %q, %q", logs[0].Platform, logs[1].Platform)
	}

	// A redispatch reaches neither platform.
	d.Dispatch(context.Background(), evt)
	if len(slack.Sent()) != 1 || len(discord.Sent()) != 1 {
		t.Errorf("sent counts = %d, %d; want 1, 1", len(slack.Sent()), len(discord.Sent()))
	}
}

func TestDispatch_DedupPerPlatform(t *testing.T) {
	db := openNotifyTestDB(t)
	slack := &MockNotifier{Name: "slack"}
	discord := &MockNotifier{Name: "discord", Err: errors.New("gateway down")}
	d := &Dispatcher{DB: db, Notifiers: []Notifier{slack, discord}}

	evt := Event{Key: "build-8", Title: "t"}
	if err := d.Dispatch(context.Background(), evt); err == nil {
		t.Fatal("expected the discord error")
	}

	// Discord recovers; the retry reaches it without re-pinging slack.
	discord.Err = nil
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if got := len(discord.Sent()); got != 1 {
		t.Errorf("discord sent count = %d, want 1 after recovery", got)
	}
	if got := len(slack.Sent()); got != 1 {
		t.Errorf("slack sent count = %d, want 1 (already delivered)", got)
	}
}

func TestDispatch_EmptyKeyNeverDeduped(t *testing.T) {
	db := openNotifyTestDB(t)
	mock := &MockNotifier{}
	d := &Dispatcher{DB: db, Notifiers: []Notifier{mock}}

	evt := Event{Title: "ad-hoc message"}
	d.Dispatch(context.Background(), evt)
	d.Dispatch(context.Background(), evt)

	if got := len(mock.Sent()); got != 2 {
		t.Errorf("sent count = %d, want 2 (keyless events always go out)", got)
	}
}

func TestDispatch_FailedDeliveryNotRecorded(t *testing.T) {
	db := openNotifyTestDB(t)
	failing := &MockNotifier{Err: errors.New("rate limited")}
	d := &Dispatcher{DB: db, Notifiers: []Notifier{failing}}

	d.Dispatch(context.Background(), Event{Key: "build-4", Title: "t"})

	var count int64
	db.Model(&models.NotificationLog{}).Count(&count)
	if count != 0 {
		t.Errorf("notification log rows = %d, want 0 after failed delivery", count)
	}

	// A later successful delivery still goes through.
	failing.Err = nil
	d.Dispatch(context.Background(), Event{Key: "build-4", Title: "t"})
	if got := len(failing.Sent()); got != 1 {
		t.Errorf("sent count = %d, want 1 on retry", got)
	}
}

func TestShouldNotify(t *testing.T) {
	rs, err := rules.Parse([]byte(`
rules:
  - name: real-failure
    pattern: 'error:'
    should_retry: false
    priority: 50
    summary: "failed"
  - name: flaky
    pattern: 'Connection timed out'
    should_retry: true
    priority: 80
    summary: "flaky"
`))
	if err != nil {
		t.Fatal(err)
	}
	scan := func(log string) classify.Result {
		res, err := classify.Scan(strings.NewReader(log), rs, classify.Metadata{})
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	tests := []struct {
		name    string
		result  classify.Result
		retries int
		limit   int
		want    bool
	}{
		{name: "real failure notifies", result: scan("error: boom\n"), retries: 0, limit: 3, want: true},
		{name: "flaky under budget stays quiet", result: scan("Connection timed out\n"), retries: 1, limit: 3, want: false},
		{name: "flaky at budget notifies", result: scan("Connection timed out\n"), retries: 3, limit: 3, want: true},
		{name: "unclassified notifies", result: scan("all fine\n"), retries: 0, limit: 3, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.result, tt.retries, tt.limit); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildEvent(t *testing.T) {
	rs, err := rules.Parse([]byte(`
rules:
  - name: compile-error
    pattern: 'error:'
    should_retry: false
    priority: 50
    summary: "Compilation failed."
`))
	if err != nil {
		t.Fatal(err)
	}
	result, err := classify.Scan(strings.NewReader("x.cpp:1: error: oops\n"), rs, classify.Metadata{})
	if err != nil {
		t.Fatal(err)
	}

	build := &models.Build{ID: 42, Project: "qtbase", Branch: "5.12", Platform: "linux-g++"}
	evt := BuildEvent(build, result)

	if evt.Key != "build-42" {
		t.Errorf("Key = %q, want build-42", evt.Key)
	}
	if evt.Title != "qtbase build failed on linux-g++" {
		t.Errorf("Title = %q", evt.Title)
	}
	if evt.Severity != SeverityError {
		t.Errorf("Severity = %q, want error", evt.Severity)
	}
	if evt.Body != "Compilation failed." {
		t.Errorf("Body = %q", evt.Body)
	}

	var ruleField *Field
	for i := range evt.Fields {
		if evt.Fields[i].Name == "Rule" {
			ruleField = &evt.Fields[i]
		}
	}
	if ruleField == nil || ruleField.Value != "compile-error" {
		t.Errorf("Rule field = %+v, want compile-error", ruleField)
	}
}

func TestBuildEvent_RuleFieldIsDecisive(t *testing.T) {
	rs, err := rules.Parse([]byte(`
rules:
  - name: compile-error
    pattern: 'error:'
    should_retry: false
    priority: 50
    summary: "Compilation failed."
  - name: network-timeout
    pattern: 'Connection timed out'
    should_retry: true
    priority: 80
    summary: "A network timeout occurred."
`))
	if err != nil {
		t.Fatal(err)
	}
	// The timeout on line 2 outranks the earlier compile error.
	result, err := classify.Scan(strings.NewReader("x.cpp:1: error: oops\nConnection timed out\n"), rs, classify.Metadata{})
	if err != nil {
		t.Fatal(err)
	}

	evt := BuildEvent(&models.Build{ID: 9, Project: "qtbase"}, result)
	rule := ""
	for _, f := range evt.Fields {
		if f.Name == "Rule" {
			rule = f.Value
		}
	}
	if rule != "network-timeout" {
		t.Errorf("Rule field = %q, want network-timeout", rule)
	}
	if evt.Body != "A network timeout occurred." {
		t.Errorf("Body = %q, want the timeout summary", evt.Body)
	}
}

func TestBuildEvent_RetryableIsWarning(t *testing.T) {
	rs, err := rules.Parse([]byte(`
rules:
  - name: flaky
    pattern: 'Connection timed out'
    should_retry: true
    priority: 80
    summary: "flaky"
`))
	if err != nil {
		t.Fatal(err)
	}
	result, err := classify.Scan(strings.NewReader("Connection timed out\n"), rs, classify.Metadata{})
	if err != nil {
		t.Fatal(err)
	}

	evt := BuildEvent(&models.Build{ID: 1, Project: "qtbase"}, result)
	if evt.Severity != SeverityWarning {
		t.Errorf("Severity = %q, want warning", evt.Severity)
	}
	if evt.Title != "qtbase build failed" {
		t.Errorf("Title = %q, want platform-free form", evt.Title)
	}
}

func TestFixEvent(t *testing.T) {
	fix := models.CommitFix{
		Repo:     "qt/qtbase",
		Branch:   "5.12",
		SHA1:     "abc123",
		Author:   "Jane Dev",
		Subject:  "Fix crash on resize",
		Version:  "5.12.6",
		IssueKey: "QTBUG-12345",
	}
	evt := FixEvent(fix)

	if evt.Key != "fix-abc123-QTBUG-12345" {
		t.Errorf("Key = %q", evt.Key)
	}
	if evt.Title != "QTBUG-12345 closed by qt/qtbase" {
		t.Errorf("Title = %q", evt.Title)
	}
	if evt.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want info", evt.Severity)
	}
	if evt.Body != "Fix crash on resize" {
		t.Errorf("Body = %q", evt.Body)
	}
}

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{SeveritySuccess, "#36a64f"},
		{SeverityWarning, "#daa038"},
		{SeverityError, "#cc0000"},
		{SeverityInfo, "#439fe0"},
		{"unknown", "#439fe0"},
	}
	for _, tt := range tests {
		if got := SeverityColor(tt.severity); got != tt.want {
			t.Errorf("SeverityColor(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}
