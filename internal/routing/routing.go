// Package routing decides which inbound messages are mirrored to the owner
// and which are processed.
package routing

import "slices"

// PublicSource reports whether the bot is open to everyone.
type PublicSource interface {
	Public() bool
}

// PublicFunc adapts a function to PublicSource.
type PublicFunc func() bool

func (f PublicFunc) Public() bool { return f() }

// Decision is the routing outcome for one inbound message.
type Decision struct {
	// Mirror sends a copy of the message to the owner.
	Mirror bool
	// Process lets the handler act on the message.
	Process bool
}

// Policy applies the owner/tester/public rules.
type Policy struct {
	owner   int64
	testers []int64
	public  PublicSource
}

// New returns a policy for owner and the tester allow-list.
func New(owner int64, testers []int64, public PublicSource) *Policy {
	return &Policy{owner: owner, testers: slices.Clone(testers), public: public}
}

// Decide routes a message from id. The owner is processed and never
// mirrored; everyone else is mirrored and processed only while the bot is
// public or when they are a tester.
func (p *Policy) Decide(id int64) Decision {
	if id == p.owner {
		return Decision{Process: true}
	}
	return Decision{
		Mirror:  true,
		Process: p.IsTester(id) || p.public.Public(),
	}
}

// DecideAdmin routes an admin command: only the owner's is processed.
func (p *Policy) DecideAdmin(id int64) Decision {
	if id == p.owner {
		return Decision{Process: true}
	}
	return Decision{Mirror: true}
}

// IsOwner reports whether id is the owner.
func (p *Policy) IsOwner(id int64) bool { return id == p.owner }

// IsTester reports whether id is on the tester allow-list.
func (p *Policy) IsTester(id int64) bool { return slices.Contains(p.testers, id) }

// Privileged reports whether id may see debug output.
func (p *Policy) Privileged(id int64) bool { return p.IsOwner(id) || p.IsTester(id) }

// Owner returns the owner identity.
func (p *Policy) Owner() int64 { return p.owner }
