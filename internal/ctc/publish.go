package ctc

// Subscribe returns a channel that receives every published snapshot and a
// function that ends the subscription. A slow subscriber only ever sees the
// latest snapshot; older undelivered ones are dropped.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.snapMu.Lock()
	c.subs[ch] = struct{}{}
	c.snapMu.Unlock()

	cancel := func() {
		c.snapMu.Lock()
		defer c.snapMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *Controller) publish(s Snapshot) {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	c.snap = s
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
