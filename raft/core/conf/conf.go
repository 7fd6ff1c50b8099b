// Package conf holds the tunables and sentinel values shared across the
// core state machine and its collaborators.
package conf

import (
	"fmt"
	"time"
)

// InvalidID is the sentinel peer id meaning "no peer" (e.g. no leader known,
// no vote cast).
const InvalidID uint64 = ^uint64(0)

// InvalidIndex is the sentinel log index meaning "before the first entry."
const InvalidIndex uint64 = 0

// InvalidTerm is the term of the sentinel, never-committed entry at index 0.
const InvalidTerm uint64 = 0

// Config carries the construction-time parameters for a replica.
type Config struct {
	// ID is this replica's own peer id.
	ID uint64
	// Peers is the set of other replicas in the cluster, excluding ID.
	Peers []uint64

	// ElectionTimeoutMin/Max bound the randomized election timeout drawn
	// on every transition into, or restart of, the follower/candidate role.
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration

	// HeartbeatInterval is the leader's fixed interval between rounds of
	// AppendEntries sent to every peer, including empty heartbeats.
	HeartbeatInterval time.Duration

	// InboxSize bounds the replica's inbound message queue.
	InboxSize int
}

// DefaultConfig returns packaged defaults: a 50ms heartbeat against a
// 150-300ms randomized election window, matching Raft's recommendation
// that the heartbeat interval sit well below the election timeout.
func DefaultConfig(id uint64, peers []uint64) Config {
	return Config{
		ID:                 id,
		Peers:              peers,
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
		InboxSize:          256,
	}
}

// Validate reports a configuration error instead of allowing the replica to
// run with a mistuned or malformed configuration. An even total cluster size
// only produces a warning (logged by the caller), since it affects liveness
// but not safety; every other violation is rejected.
func (c Config) Validate() error {
	if c.ElectionTimeoutMin <= 0 || c.ElectionTimeoutMax <= 0 {
		return fmt.Errorf("conf: election timeout bounds must be positive")
	}
	if c.ElectionTimeoutMin >= c.ElectionTimeoutMax {
		return fmt.Errorf("conf: election timeout min must be < max")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("conf: heartbeat interval must be positive")
	}
	if c.HeartbeatInterval >= c.ElectionTimeoutMin {
		return fmt.Errorf("conf: heartbeat interval (%s) must be well below the election timeout minimum (%s), or a live leader will trigger spurious elections", c.HeartbeatInterval, c.ElectionTimeoutMin)
	}
	for _, p := range c.Peers {
		if p == c.ID {
			return fmt.Errorf("conf: peer list must not contain this replica's own id")
		}
	}
	return nil
}

// ClusterSizeIsEven reports whether the total cluster size (this replica
// plus its peers) is even. An even size is legal but not recommended: it
// can produce a permanently tied majority threshold under partition.
func (c Config) ClusterSizeIsEven() bool {
	return (len(c.Peers)+1)%2 == 0
}

// MajoritySize returns the number of grants/acks required to reach
// quorum across the full cluster (this replica plus its peers).
func (c Config) MajoritySize() int {
	return (len(c.Peers)+1)/2 + 1
}
