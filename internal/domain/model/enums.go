package model

// CredentialOrigin records where a cached credential came from.
type CredentialOrigin string

const (
	OriginBroker CredentialOrigin = "broker" // issued by the identity broker
	OriginManual CredentialOrigin = "manual" // supplied directly (token endpoint, tests)
)

// EventKind is the closed set of webhook event categories the dispatcher
// routes on. Provider types outside the set map to KindUnknown.
type EventKind string

const (
	KindPayment       EventKind = "payment"
	KindMerchantOrder EventKind = "merchant_order"
	KindConnect       EventKind = "mp-connect"
	KindUnknown       EventKind = "unknown"
)

// Connect event actions (account authorization lifecycle).
const (
	ActionAuthorized   = "application.authorized"
	ActionDeauthorized = "application.deauthorized"
)

// DispatchOutcome is the terminal state of one event's processing.
type DispatchOutcome string

const (
	OutcomeHandled      DispatchOutcome = "handled"
	OutcomeDuplicate    DispatchOutcome = "duplicate"
	OutcomeUnrecognized DispatchOutcome = "unrecognized"
	OutcomeFailed       DispatchOutcome = "failed"
)
