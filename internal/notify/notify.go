// Package notify delivers classification events to chat platforms
// (Slack, Discord).
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/signalbox/internal/models"
)

// Severity levels for events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeveritySuccess = "success"
)

// Notifier is the interface platform-specific implementations satisfy.
type Notifier interface {
	// Send delivers one event to the platform.
	Send(ctx context.Context, evt Event) error

	// Platform names the backing service, e.g. "slack".
	Platform() string

	// Close gracefully shuts down the connection.
	Close() error
}

// Event is a classification outcome formatted for chat display.
type Event struct {
	Key      string  // dedup key; empty events are always sent
	Title    string  // headline, e.g. "qtbase build failed on linux-g++"
	Body     string  // detail text
	Severity string  // info, warning, error, success
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Dispatcher fans events out to the configured notifiers, skipping
// platforms the event key has already been delivered to.
type Dispatcher struct {
	DB        *gorm.DB // optional; nil disables dedup
	Notifiers []Notifier
}

// Dispatch sends the event to every notifier. Delivery is best-effort
// per platform: one failing notifier does not stop the others, and the
// first failure is returned. Dedup is per platform, so a platform that
// failed last time is retried while the others stay quiet.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	var firstErr error
	for _, n := range d.Notifiers {
		if evt.Key != "" && d.alreadySent(evt.Key, n.Platform()) {
			continue
		}
		if err := n.Send(ctx, evt); err != nil {
			log.Printf("notify: %s: %v", n.Platform(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("notify: %s: %w", n.Platform(), err)
			}
			continue
		}
		d.record(evt, n.Platform())
	}
	return firstErr
}

// alreadySent checks the notification log for a delivery of the event
// key to the platform.
func (d *Dispatcher) alreadySent(key, platform string) bool {
	if d.DB == nil {
		return false
	}
	var count int64
	d.DB.Model(&models.NotificationLog{}).
		Where("event_key = ? AND platform = ?", key, platform).
		Count(&count)
	return count > 0
}

// record writes the delivery to the notification log.
func (d *Dispatcher) record(evt Event, platform string) {
	if d.DB == nil || evt.Key == "" {
		return
	}
	err := d.DB.Create(&models.NotificationLog{
		EventKey:  evt.Key,
		Platform:  platform,
		Title:     evt.Title,
		CreatedAt: time.Now(),
	}).Error
	if err != nil {
		log.Printf("notify: record delivery of %q: %v", evt.Key, err)
	}
}

// SeverityColor maps a severity to a sidebar color hint.
func SeverityColor(severity string) string {
	switch severity {
	case SeveritySuccess:
		return "#36a64f"
	case SeverityWarning:
		return "#daa038"
	case SeverityError:
		return "#cc0000"
	default:
		return "#439fe0"
	}
}
