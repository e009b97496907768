package bus

// Topology constants (spec §4.1). Centralized here and nowhere else —
// every exchange/queue/routing-key name used by a publisher or consumer
// is one of these constants, never a literal string at the call site,
// the same way the teacher centralizes its Redis key patterns
// (keyPendingQueue, keyDelayedQueue, keyDLQQueue in
// services/api/internal/notification/queue.go).
const (
	ExchangeEvents = "events"
	ExchangeDLX    = "events.dlx"

	QueueBotEvents    = "bot_events"
	QueueBotEventsDLQ = "bot_events.dlq"
)

// bindingPatterns are the routing-key patterns bound to QueueBotEvents
// (spec §4.1 table). AMQP topic wildcards: "*" matches exactly one word.
var bindingPatterns = []string{
	"game.*",
	"participant.*",
	"notification.*",
}

// QueueSpec describes one primary queue and its dedicated DLQ, used by
// the Init Service (C9) to declare topology once before any other
// component connects (spec §2 C9).
type QueueSpec struct {
	Name            string
	DLQName         string
	BindingPatterns []string
}

// Declarations is the full set of primary-queue declarations this
// system needs. Exactly one primary queue today (bot_events); adding a
// second consumer means adding one entry here, never inlining a new
// queue.Declare call elsewhere.
func Declarations() []QueueSpec {
	return []QueueSpec{
		{
			Name:            QueueBotEvents,
			DLQName:         QueueBotEventsDLQ,
			BindingPatterns: bindingPatterns,
		},
	}
}
