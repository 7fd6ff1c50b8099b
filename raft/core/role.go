package core

import "github.com/cittaliu/raft4j/raft/peer"

// Role is the set of states a replica can be in.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// roleState is the sum-type substitute this package uses in place of
// carrying candidate-only and leader-only fields directly on Core
// regardless of the current role. Exactly one concrete type implements it
// at any time, and a role transition swaps the value outright, so a
// handler that type-asserts to the wrong variant fails immediately instead
// of silently reading stale data left over from a previous role.
type roleState interface {
	role() Role
}

type followerState struct{}

func (followerState) role() Role { return Follower }

type candidateState struct {
	votes map[uint64]struct{}
}

func (*candidateState) role() Role { return Candidate }

type leaderState struct {
	peers map[uint64]*peer.Node
}

func (*leaderState) role() Role { return Leader }
