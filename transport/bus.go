package transport

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cittaliu/raft4j/raft/raftpb"
)

// Bus is an in-memory Dispatcher connecting a fixed set of registered
// receivers by peer id. It is the test and demo-binary stand-in for a real
// network client, grounded on this module's test-harness lineage's network
// simulator: each message is handed off on its own goroutine (or timer, when
// delayed) so a slow or dead receiver cannot stall the sender, and the same primitives
// (drop, delay, partition, duplicate) used there to exercise the protocol
// under adversarial conditions are exposed here too.
type Bus struct {
	mu sync.RWMutex

	receivers map[uint64]Receiver
	cut       map[[2]uint64]bool
	dropAll   map[uint64]bool
	delay     map[[2]uint64]time.Duration
	duplicate map[[2]uint64]int
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		receivers: make(map[uint64]Receiver),
		cut:       make(map[[2]uint64]bool),
		dropAll:   make(map[uint64]bool),
		delay:     make(map[[2]uint64]time.Duration),
		duplicate: make(map[[2]uint64]int),
	}
}

// Register associates id with r so that Send(id, ...) reaches it.
func (b *Bus) Register(id uint64, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receivers[id] = r
}

// Partition makes messages between a and b (in either direction) vanish,
// simulating a network partition between those two peers.
func (b *Bus) Partition(a, bID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cut[[2]uint64{a, bID}] = true
	b.cut[[2]uint64{bID, a}] = true
}

// Heal reverses a prior Partition.
func (b *Bus) Heal(a, bID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cut, [2]uint64{a, bID})
	delete(b.cut, [2]uint64{bID, a})
}

// Down makes every message destined for id vanish, simulating a crashed
// or disconnected peer.
func (b *Bus) Down(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropAll[id] = true
}

// Up reverses a prior Down.
func (b *Bus) Up(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.dropAll, id)
}

// Delay makes every message from a to b arrive no sooner than d after it is
// sent, simulating a slow link. A zero duration (the default) delivers
// immediately.
func (b *Bus) Delay(a, to uint64, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay[[2]uint64{a, to}] = d
}

// Duplicate makes every message from a to b also be delivered extra more
// times, simulating a retry-happy or flaky link that redelivers a message
// the protocol must tolerate.
func (b *Bus) Duplicate(a, to uint64, extra int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.duplicate[[2]uint64{a, to}] = extra
}

func (b *Bus) Send(to uint64, msg raftpb.Message) error {
	b.mu.RLock()
	r, ok := b.receivers[to]
	from := msg.Source()
	dropped := b.dropAll[to] || b.cut[[2]uint64{from, to}]
	d := b.delay[[2]uint64{from, to}]
	extra := b.duplicate[[2]uint64{from, to}]
	b.mu.RUnlock()

	if !ok {
		log.WithField("to", to).Debug("transport: no receiver registered")
		return nil
	}
	if dropped {
		log.WithFields(log.Fields{"from": from, "to": to}).Debug("transport: message dropped")
		return nil
	}
	for i := 0; i < 1+extra; i++ {
		b.deliver(r, msg, d)
	}
	return nil
}

func (b *Bus) deliver(r Receiver, msg raftpb.Message, d time.Duration) {
	if d <= 0 {
		go r.MessageReceived(msg)
		return
	}
	time.AfterFunc(d, func() { r.MessageReceived(msg) })
}
