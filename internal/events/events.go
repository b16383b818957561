// Package events publishes virtual file system change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types.
const (
	ProjectCreated   = "project.created"
	ProjectDeleted   = "project.deleted"
	ProjectRenamed   = "project.renamed"
	FileSaved        = "file.saved"
	FileDeleted      = "file.deleted"
	PackageInstalled = "package.installed"
)

// Event describes one successful mutation.
type Event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id"`
	Path      string    `json:"path,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier receives change events. Implementations must not block for long;
// Notify is called with the VFS lock released but on the caller's goroutine.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// NATSNotifier publishes each event as JSON on
// <prefix>.projects.<projectID>.<type>.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSNotifier wraps an existing connection.
func NewNATSNotifier(nc *nats.Conn, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = "codepad"
	}
	return &NATSNotifier{nc: nc, prefix: prefix}
}

// Connect dials url with reconnect settings suited to a long-running server.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("codepad"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Subject returns the subject an event is published on.
func (n *NATSNotifier) Subject(ev Event) string {
	return fmt.Sprintf("%s.projects.%s.%s", n.prefix, subjectToken(ev.ProjectID), ev.Type)
}

// subjectToken keeps an id from introducing extra subject levels or
// wildcards.
func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

func (n *NATSNotifier) Notify(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(n.Subject(ev), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
