package driven

import "context"

// EventLedger is the at-most-once gate for webhook event processing.
// An event id claimed within the retention window must not be re-executed.
type EventLedger interface {
	// TryClaim records the event id if it has not been seen within the
	// retention window. Returns true when this call is the first claimant
	// and processing should proceed, false when the event is a duplicate.
	TryClaim(ctx context.Context, eventID string) (bool, error)

	// Release un-claims an event id after a failed processing attempt so a
	// redelivery can be executed.
	Release(ctx context.Context, eventID string) error
}
