// Package queue defines the notification payloads exchanged over the
// message broker and the consumer that delivers them to a local log.
package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/court-booking/internal/model"
)

// RoutingPrefix prefixes every notification routing key.
const RoutingPrefix = "notify."

// NotificationMessage is published for every templated message the
// booking and payment layers want delivered. It carries the rendered
// parameters so the delivery side never reads the stores.
type NotificationMessage struct {
	ID          string            `json:"id"`
	Template    string            `json:"template"`
	To          string            `json:"to"`
	Params      map[string]string `json:"params"`
	RequestedAt time.Time         `json:"requested_at"`
}

// FromNotification wraps n with an id and timestamp.
func FromNotification(id string, n model.Notification, at time.Time) NotificationMessage {
	return NotificationMessage{ID: id, Template: n.Template, To: n.To, Params: n.Params, RequestedAt: at.UTC()}
}

// RoutingKey is the topic key of the message, e.g. notify.player_joined.
func (m NotificationMessage) RoutingKey() string { return RoutingPrefix + m.Template }

// Line renders the message as one log line with params in key order.
func (m NotificationMessage) Line() string {
	keys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | id=%s | to=%s", m.RequestedAt.Format(time.RFC3339), m.Template, m.ID, m.To)
	for _, k := range keys {
		fmt.Fprintf(&b, " | %s=%q", k, m.Params[k])
	}
	b.WriteByte('\n')
	return b.String()
}
