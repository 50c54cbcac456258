package broker

// Every store change goes to one subject; the chat has a single feed.
const (
	StreamName      = "FRIENDLYCHAT"
	SubjectMessages = StreamName + ".messages.changes"
)
