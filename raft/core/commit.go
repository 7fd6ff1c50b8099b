package core

import "fmt"

// applyCommitted drains every log entry between the state machine's last
// applied index and commitIndex into the state machine, then, if the state
// machine has produced a newer snapshot than the last one this replica
// compacted against, truncates the log up to that snapshot.
func (c *Core) applyCommitted() {
	if last := c.store.LastEntry().Index; c.commitIndex > last {
		panic(fmt.Sprintf("raft: commitIndex %d exceeds last log index %d", c.commitIndex, last))
	}

	for c.sm.LastAppliedIndex() < c.commitIndex {
		from := c.sm.LastAppliedIndex() + 1
		to := c.commitIndex + 1
		batch, err := c.store.Slice(from, to)
		if err != nil {
			c.logger.WithError(err).Error("raft: failed to read committed entries")
			return
		}
		if err := c.sm.Apply(batch); err != nil {
			c.logger.WithError(err).Error("raft: state machine failed to apply committed entries")
			return
		}
		c.applied = append(c.applied, batch...)
	}

	if snap, ok := c.sm.LatestSnapshot(); ok && snap.Index > c.lastCompacted {
		if err := c.store.DeleteUpTo(snap.Index); err != nil {
			c.logger.WithError(err).Error("raft: failed to compact log against snapshot")
			return
		}
		c.lastCompacted = snap.Index
	}
}
