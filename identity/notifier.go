package identity

import (
	"context"
	"sync"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/internal/logging"
	"go.uber.org/zap"
)

// MessageKind says what a [Message] delivers.
type MessageKind uint8

const (
	MessageCode MessageKind = iota + 1
	MessagePasswordReset
)

func (k MessageKind) String() string {
	switch k {
	case MessageCode:
		return "code"
	case MessagePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

// Message is one outbound code or reset link.
type Message struct {
	Kind           MessageKind
	Identifier     string
	IdentifierType authflow.IdentifierType
	Variant        authflow.FlowVariant
	Code           string
	Link           string
}

// Notifier delivers messages to users.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Outbox records messages in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	notify   chan Message
}

// NewOutbox returns an outbox. When buffer is positive every message is also
// offered on C without blocking.
func NewOutbox(buffer int) *Outbox {
	o := &Outbox{}
	if buffer > 0 {
		o.notify = make(chan Message, buffer)
	}
	return o
}

func (o *Outbox) Notify(_ context.Context, msg Message) error {
	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()
	if o.notify != nil {
		select {
		case o.notify <- msg:
		default:
		}
	}
	return nil
}

// C streams messages; nil when the outbox was built without a buffer.
func (o *Outbox) C() <-chan Message { return o.notify }

// Messages returns a copy of everything delivered so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the latest message for identifier.
func (o *Outbox) Last(identifier string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Identifier == identifier {
			return o.messages[i], true
		}
	}
	return Message{}, false
}

// LogNotifier writes messages to a logger. Codes are logged in clear, so
// it is only fit for development.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	n.Logger.Info("identity message",
		zap.Stringer("kind", msg.Kind),
		zap.String("identifier", logging.MaskIdentifier(msg.Identifier)),
		zap.String("code", msg.Code),
		zap.String("link", msg.Link),
	)
	return nil
}
