package pubsub

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// subscriberSetSize is a reasonable starting capacity for a topic's
// subscriber set; topics rarely exceed a handful of concurrent listeners.
const subscriberSetSize = 4

type inMemoryPubSub struct {
	topics *xsync.Map[string, *subscriberSet]
}

type subscriberSet struct {
	mu   sync.Mutex
	subs map[*inMemorySubscription]struct{}
}

func makeInMemoryPubSub() PubSub {
	return &inMemoryPubSub{
		topics: xsync.NewMap[string, *subscriberSet](),
	}
}

func (p *inMemoryPubSub) Publish(topic string, message []byte) error {
	set, ok := p.topics.Load(topic)
	if !ok {
		return nil
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	for sub := range set.subs {
		select {
		case sub.ch <- message:
		default:
			// A slow subscriber drops the message rather than blocking the
			// publisher; presence/signaling traffic is safe to miss.
		}
	}
	return nil
}

func (p *inMemoryPubSub) Subscribe(topic string) Subscription {
	set, _ := p.topics.LoadOrStore(topic, &subscriberSet{
		subs: make(map[*inMemorySubscription]struct{}, subscriberSetSize),
	})

	sub := &inMemorySubscription{
		ch:    make(chan []byte, subscriberSetSize),
		set:   set,
		topic: topic,
		owner: p,
	}
	set.mu.Lock()
	set.subs[sub] = struct{}{}
	set.mu.Unlock()
	return sub
}

func (p *inMemoryPubSub) Close() error {
	return nil
}

type inMemorySubscription struct {
	ch       chan []byte
	set      *subscriberSet
	topic    string
	owner    *inMemoryPubSub
	closeMu  sync.Mutex
	closed   bool
}

func (s *inMemorySubscription) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.set.mu.Lock()
	delete(s.set.subs, s)
	s.set.mu.Unlock()
	close(s.ch)
	return nil
}

func (s *inMemorySubscription) Channel() <-chan []byte {
	return s.ch
}
