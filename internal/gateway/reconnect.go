package gateway

import "time"

// reconnectLoop retries the connection until it succeeds or the client
// is closed. At most one loop runs at a time; a second caller observing
// the CAS already taken simply returns, trusting the running loop.
//
// Delay schedule: initial_delay doubling per failure up to max_delay,
// then flat. Attempts are unbounded - a gateway that gives up is worse
// than one that keeps knocking.
func (c *Client) reconnectLoop() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	delay := c.cfg.InitialReconnectDelay()
	maxDelay := c.cfg.MaxReconnectDelay()
	attempt := 0

	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		attempt++
		c.setState(StateConnecting)
		c.getLogger().Info("reconnect attempt",
			"attempt", attempt,
			"delay", delay.String(),
		)

		if err := c.attemptConnect(); err != nil {
			c.getLogger().Warn("reconnect failed",
				"attempt", attempt,
				"error", err,
			)
			c.setState(StateReconnecting)
			delay = nextDelay(delay, maxDelay)
			continue
		}

		c.handleConnected()
		return
	}
}

// nextDelay doubles the backoff delay, capped at maxDelay.
func nextDelay(current, maxDelay time.Duration) time.Duration {
	next := current * 2
	if next > maxDelay {
		return maxDelay
	}
	return next
}
