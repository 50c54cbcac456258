package model

// ChangeKind tags a live-query change record.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
)

// Change is a single upsert or remove notification. Message is nil for
// removes. Created is set on the upsert that first introduced the record to
// the store, and is used by the push notifier.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	ID      string     `json:"id"`
	Message *Message   `json:"message,omitempty"`
	Created bool       `json:"created,omitempty"`
}

// ChangeBatch is an ordered group of changes delivered together.
type ChangeBatch []Change

// Upsert builds an upsert change for msg.
func Upsert(msg Message) Change {
	return Change{Kind: ChangeUpsert, ID: msg.ID, Message: &msg}
}

// Remove builds a remove change for id.
func Remove(id string) Change {
	return Change{Kind: ChangeRemove, ID: id}
}
