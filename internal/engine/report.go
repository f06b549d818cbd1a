package engine

import "log/slog"

// Report counts what one Subscribe, Unsubscribe or Forget call did.
type Report struct {
	Tokens     int `json:"tokens"`     // tokens received
	Titles     int `json:"titles"`     // tokens that classified as TITLE and were ignored
	Duplicates int `json:"duplicates"` // repeats of an identifier already seen in the batch

	Resolved   int `json:"resolved"`   // identifiers looked up successfully
	Unresolved int `json:"unresolved"` // lookups that failed; the token was skipped
	Unknown    int `json:"unknown"`    // unsubscribe identifiers matching no document
	Skipped    int `json:"skipped"`    // tokens dropped after a store conflict that did not settle

	Created  int `json:"created"`  // documents created
	Attached int `json:"attached"` // identifiers attached to an existing sibling document

	Linked        int `json:"linked"`         // new subscription edges
	AlreadyLinked int `json:"already_linked"` // subscriptions that already existed
	Unlinked      int `json:"unlinked"`       // subscription edges removed

	SubscriberCreated bool `json:"subscriber_created"`
	SubscriberDeleted bool `json:"subscriber_deleted"`
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tokens", r.Tokens),
		slog.Int("titles", r.Titles),
		slog.Int("duplicates", r.Duplicates),
		slog.Int("resolved", r.Resolved),
		slog.Int("unresolved", r.Unresolved),
		slog.Int("unknown", r.Unknown),
		slog.Int("skipped", r.Skipped),
		slog.Int("created", r.Created),
		slog.Int("attached", r.Attached),
		slog.Int("linked", r.Linked),
		slog.Int("already_linked", r.AlreadyLinked),
		slog.Int("unlinked", r.Unlinked),
		slog.Bool("subscriber_created", r.SubscriberCreated),
		slog.Bool("subscriber_deleted", r.SubscriberDeleted),
	)
}
