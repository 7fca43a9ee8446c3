package cartevents

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Publisher forwards applied cart mutations to a Pub/Sub topic. Results are
// awaited in the background; failures are logged and dropped.
type Publisher struct {
	pub     publisher
	stop    func()
	logg    *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// New wraps a topic publisher. A nil topic yields a Publisher that drops
// every event.
func New(topic *gcppubsub.Publisher, logg *logger.Logger) *Publisher {
	if logg == nil {
		logg = logger.Nop()
	}
	p := &Publisher{logg: logg, timeout: defaultPublishTimeout}
	if topic != nil {
		p.pub = &gcpPublisher{Publisher: topic}
		p.stop = topic.Stop
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, event cart.Event) {
	if p == nil || p.pub == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logg.Error(ctx, "encode cart event", err)
		return
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":     uuid.NewString(),
			"event_type":   "cart." + event.Type,
			"identity_key": event.IdentityKey,
			"occurred_at":  event.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	ctx = context.WithoutCancel(ctx)
	result := p.pub.Publish(ctx, msg)
	if result == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if _, err := result.Get(waitCtx); err != nil {
			fields := map[string]any{"event_type": msg.Attributes["event_type"], "event_id": msg.Attributes["event_id"]}
			p.logg.Error(p.logg.WithFields(ctx, fields), "cart event publish failed", err)
		}
	}()
}

// Close waits for pending results and stops the topic publisher.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.wg.Wait()
	if p.stop != nil {
		p.stop()
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
