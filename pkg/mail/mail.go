package mail

import "context"

// Message is a single outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a message through one concrete transport. The
// implementation is chosen once at startup from configuration; callers
// never branch on which transport is behind the interface.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
