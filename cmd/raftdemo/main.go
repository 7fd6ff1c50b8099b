// Command raftdemo wires five in-process replicas together over an
// in-memory bus, proposes a handful of key/value commands against whichever
// replica is elected leader, and prints each replica's view of the
// resulting state. It exists to exercise the wiring end to end; it is not
// part of this module's contract (process bootstrap, service discovery,
// and a real network transport are all out of scope for the core).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cittaliu/raft4j/clock"
	"github.com/cittaliu/raft4j/raft"
	"github.com/cittaliu/raft4j/raft/core/conf"
	"github.com/cittaliu/raft4j/raftlog"
	"github.com/cittaliu/raft4j/statemachine"
	"github.com/cittaliu/raft4j/transport"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ids := []uint64{1, 2, 3, 4, 5}
	bus := transport.NewBus()
	replicas := make(map[uint64]*raft.Replica, len(ids))
	sms := make(map[uint64]*statemachine.KVStore, len(ids))

	for _, id := range ids {
		peers := make([]uint64, 0, len(ids)-1)
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		cfg := conf.Config{
			ID:                 id,
			Peers:              peers,
			ElectionTimeoutMin: 150 * time.Millisecond,
			ElectionTimeoutMax: 300 * time.Millisecond,
			HeartbeatInterval:  50 * time.Millisecond,
			InboxSize:          256,
		}
		sm := statemachine.NewKVStore()
		sms[id] = sm
		r := raft.New(cfg, raftlog.NewMemory(), sm, bus, clock.Real{})
		replicas[id] = r
		bus.Register(id, r)
	}

	leader := awaitLeader(replicas)
	log.WithField("leader", leader.Status().ID).Info("cluster ready")

	commands := []statemachine.Command{
		{Op: statemachine.OpSet, Key: "a", Value: "1"},
		{Op: statemachine.OpSet, Key: "b", Value: "2"},
		{Op: statemachine.OpDelete, Key: "a"},
	}
	for _, cmd := range commands {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		index, redirect, err := leader.Propose(ctx, statemachine.EncodeCommand(cmd))
		cancel()
		if err != nil {
			log.WithError(err).WithField("redirect", redirect).Error("propose failed")
			continue
		}
		log.WithField("index", index).WithField("command", cmd).Info("proposed")
	}

	time.Sleep(500 * time.Millisecond)

	for _, id := range ids {
		v, _ := sms[id].Get("b")
		fmt.Fprintf(os.Stdout, "replica %d: status=%+v b=%q\n", id, replicas[id].Status(), v)
	}

	for _, r := range replicas {
		r.Stop()
	}
}

func awaitLeader(replicas map[uint64]*raft.Replica) *raft.Replica {
	for {
		for _, r := range replicas {
			if r.Status().Role.String() == "leader" {
				return r
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
}
