package clock

// Clock issues operation ids for a single actor.
//
// Counters follow Lamport rules: every issued counter is greater than any
// counter previously observed, local or remote.
type Clock struct {
	actor ActorID
	max   uint64
}

// New returns a clock for the given actor that continues after the given high-water mark.
func New(actor ActorID, max uint64) *Clock {
	return &Clock{actor: actor, max: max}
}

// Actor returns the actor this clock issues ids for.
func (c *Clock) Actor() ActorID {
	return c.actor
}

// Max returns the highest counter issued or observed.
func (c *Clock) Max() uint64 {
	return c.max
}

// Peek returns the id that the next call to Next will return.
func (c *Clock) Peek() OpID {
	return OpID{Counter: c.max + 1, Actor: c.actor}
}

// Next returns a fresh operation id.
func (c *Clock) Next() OpID {
	c.max++
	return OpID{Counter: c.max, Actor: c.actor}
}

// Observe raises the high-water mark to the given counter.
func (c *Clock) Observe(counter uint64) {
	if counter > c.max {
		c.max = counter
	}
}
