package fabric

import (
	"context"
	"sync"
	"time"

	"github.com/cedadev/nlds-go/pkg/model"
)

// FakeBroker is an in-memory stand-in for the topic exchange, used by
// component unit tests so stage logic can be exercised without a live
// RabbitMQ instance. It implements the same topic-matching semantics as
// the real broker (see TopicMatch) for MatchingQueues, but delivers
// nothing: it only records each publication, with its delay value, so
// tests assert on what was published rather than on real elapsed time.
type FakeBroker struct {
	mu        sync.Mutex
	queues    map[string][]Binding
	published []FakePublication
}

// FakePublication records one call to Publish/PublishDelayed for
// assertions in tests.
type FakePublication struct {
	Envelope model.Envelope
	Delay    time.Duration
}

// NewFakeBroker returns an empty fake broker.
func NewFakeBroker() *FakeBroker {
	return &FakeBroker{queues: make(map[string][]Binding)}
}

// Bind registers queueName as interested in the given binding patterns.
func (f *FakeBroker) Bind(queueName string, bindings []Binding) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queues[queueName] = bindings
}

// Publish records env with a zero delay; it is not delivered to any bound
// queue.
func (f *FakeBroker) Publish(ctx context.Context, env model.Envelope) error {
	return f.PublishDelayed(ctx, env, 0)
}

// PublishDelayed is Publish plus a recorded delay value.
func (f *FakeBroker) PublishDelayed(ctx context.Context, env model.Envelope, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.published = append(f.published, FakePublication{Envelope: env, Delay: delay})

	return nil
}

// Published returns every envelope published so far, for test assertions.
func (f *FakeBroker) Published() []FakePublication {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]FakePublication, len(f.published))
	copy(out, f.published)

	return out
}

// MatchingQueues returns the names of every bound queue whose bindings
// match routingKey, mirroring how the real exchange would fan the message
// out.
func (f *FakeBroker) MatchingQueues(routingKey string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string

	for name, bindings := range f.queues {
		for _, b := range bindings {
			if TopicMatch(b.RoutingKey, routingKey) {
				out = append(out, name)
				break
			}
		}
	}

	return out
}
