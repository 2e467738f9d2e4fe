package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
)

// DefaultTopic carries mutual-match events.
const DefaultTopic = "matches.mutual"

// Bus is a watermill publisher and subscriber pair sharing one transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	shared     bool
	closeOnce  sync.Once
}

// Close closes the publisher and the subscriber.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.shared {
			err = b.Publisher.Close()
			return
		}
		err = errors.Join(b.Publisher.Close(), b.Subscriber.Close())
	})
	return err
}

// NewMemoryBus returns an in-process bus, used when no NATS URL is configured.
func NewMemoryBus() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logging.Watermill())
	return &Bus{Publisher: ch, Subscriber: ch, shared: true}
}

// NewNATSBus connects to core NATS. Match events are ephemeral so JetStream
// is not used; the relay's deduper absorbs redeliveries.
func NewNATSBus(url string) (*Bus, error) {
	logger := logging.Watermill()
	natsOpts := []natsgo.Option{
		natsgo.Name("roommate-matcher"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return &Bus{Publisher: pub, Subscriber: sub}, nil
}

// BusPublisher is a matching.Notifier that publishes events to a topic.
type BusPublisher struct {
	pub   message.Publisher
	topic string
}

func NewBusPublisher(pub message.Publisher, topic string) *BusPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &BusPublisher{pub: pub, topic: topic}
}

func (p *BusPublisher) OnMutualMatch(ctx context.Context, ev matching.MatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode match event: %w", err)
	}
	msg := message.NewMessage(ev.MatchKey, payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, ev.MatchKey)
	msg.SetContext(ctx)
	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish match event: %w", err)
	}
	return nil
}

// Relay consumes the topic and hands each event to next. Messages that fail
// to decode are acked and dropped; delivery failures are nacked.
type Relay struct {
	sub   message.Subscriber
	topic string
	next  matching.Notifier
}

func NewRelay(sub message.Subscriber, topic string, next matching.Notifier) *Relay {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Relay{sub: sub, topic: topic, next: next}
}

// Run blocks until ctx is done or the subscription closes.
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.sub.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.topic, err)
	}
	log := logging.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev matching.MatchEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed match event")
				msg.Ack()
				continue
			}
			if err := r.next.OnMutualMatch(ctx, ev); err != nil {
				log.Warn().Err(err).Str("match_key", ev.MatchKey).Msg("match event delivery failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}
