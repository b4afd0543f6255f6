package model

// Notification templates understood by the delivery side.
const (
	TemplateReservationCreated   = "reservation_created"
	TemplatePlayerJoined         = "player_joined"
	TemplatePlayerLeft           = "player_left"
	TemplateReservationCancelled = "reservation_cancelled"
	TemplatePaymentReminder      = "payment_reminder"
	TemplatePlayerEvicted        = "player_evicted"
)

// Notification asks the delivery collaborator to send a templated message
// to a phone number or group. Composition and localization happen there.
type Notification struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Params   map[string]string `json:"params"`
}
