package service

import (
	"sync"

	"github.com/getAlby/evmhub.go/common"
	"github.com/labstack/gommon/random"
)

// Pubsub fans invoice events out to in-process subscribers keyed by event type.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan common.InvoiceEvent
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan common.InvoiceEvent)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan common.InvoiceEvent) (subId string, err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan common.InvoiceEvent)
	}
	subId = random.String(32, random.Alphanumeric)
	ps.subs[topic][subId] = ch
	return subId, nil
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
}

// Publish never blocks the caller: a subscriber that is not ready misses the event.
// It reports how many subscribers dropped it.
func (ps *Pubsub) Publish(topic string, msg common.InvoiceEvent) (dropped int) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.subs[topic] == nil {
		return 0
	}

	for _, ch := range ps.subs[topic] {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	return dropped
}

func (ps *Pubsub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[topic])
}
