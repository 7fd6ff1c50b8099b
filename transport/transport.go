// Package transport defines the message-dispatcher boundary a replica
// depends on to exchange RPCs with its peers, and ships an in-memory,
// goroutine-safe bus for tests and the demo binary.
package transport

import "github.com/cittaliu/raft4j/raft/raftpb"

// Dispatcher is the boundary a replica uses to send messages to peers by
// id. Sends are best-effort and non-blocking from the replica's
// perspective; delivery failures surface to the replica only indirectly,
// through the absence of a timely response.
type Dispatcher interface {
	// Send delivers msg to peer to. It must not block the caller on the
	// peer's availability.
	Send(to uint64, msg raftpb.Message) error
}

// Receiver is implemented by anything that accepts inbound messages, i.e.
// a replica's entry point into its event loop.
type Receiver interface {
	MessageReceived(msg raftpb.Message)
}
