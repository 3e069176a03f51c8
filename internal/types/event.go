package types

// EventType tags entries of the subscription audit log
type EventType string

const (
	EventTypeSubscriptionCreated   EventType = "subscription_created"
	EventTypeSubscriptionCanceled  EventType = "subscription_canceled"
	EventTypeSubscriptionSkipped   EventType = "subscription_skipped"
	EventTypeSubscriptionActivated EventType = "subscription_activated"
	EventTypeSubscriptionEnded     EventType = "subscription_ended"
)

func (e EventType) String() string {
	return string(e)
}
