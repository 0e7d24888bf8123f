package notify

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/classify"
	"github.com/zulandar/signalbox/internal/models"
)

// ShouldNotify decides whether a classified build warrants a chat
// notification. Real failures always do; retryable infrastructure
// flakes stay quiet until the build has burned through the retry
// budget.
func ShouldNotify(result classify.Result, retries, retryLimit int) bool {
	if result.Unclassified() {
		return true // nobody recognized it, a human should look
	}
	if !result.ShouldRetry {
		return true
	}
	return retries >= retryLimit
}

// BuildEvent formats a classified build as a chat event.
func BuildEvent(build *models.Build, result classify.Result) Event {
	severity := SeverityError
	if result.ShouldRetry {
		severity = SeverityWarning
	}
	if result.Unclassified() {
		severity = SeverityWarning
	}

	title := fmt.Sprintf("%s build failed", build.Project)
	if build.Platform != "" {
		title = fmt.Sprintf("%s build failed on %s", build.Project, build.Platform)
	}

	fields := []Field{
		{Name: "Branch", Value: build.Branch, Short: true},
		{Name: "Retry", Value: fmt.Sprintf("%v", result.ShouldRetry), Short: true},
	}
	if !result.Unclassified() {
		fields = append(fields, Field{Name: "Rule", Value: result.Decisive.Rule.Name, Short: true})
	}

	return Event{
		Key:      fmt.Sprintf("build-%d", build.ID),
		Title:    title,
		Body:     result.Summary,
		Severity: severity,
		Fields:   fields,
	}
}

// FixEvent formats a Fixes-footer commit as a chat event.
func FixEvent(fix models.CommitFix) Event {
	return Event{
		Key:      fmt.Sprintf("fix-%s-%s", fix.SHA1, fix.IssueKey),
		Title:    fmt.Sprintf("%s closed by %s", fix.IssueKey, fix.Repo),
		Body:     fix.Subject,
		Severity: SeverityInfo,
		Fields: []Field{
			{Name: "Branch", Value: fix.Branch, Short: true},
			{Name: "Version", Value: fix.Version, Short: true},
			{Name: "Author", Value: fix.Author, Short: true},
		},
	}
}
