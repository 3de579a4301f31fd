package gateway

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// setupSubscriptions installs the session's wildcard subscriptions.
//
// Called after every successful connect. Because the session is
// non-clean the broker remembers subscriptions across reconnects, so
// each pattern is subscribed at most once; the set makes repeat calls
// no-ops. A failed subscribe is forgotten so the next connect retries it.
func (c *Client) setupSubscriptions() {
	subscriptions := []struct {
		pattern string
		handler pahomqtt.MessageHandler
	}{
		{Topics{}.AllDeviceStates(), c.wrapHandler(c.handleStateMessage)},
		{Topics{}.AllDeviceStatuses(), c.wrapHandler(c.handleStatusMessage)},
	}

	for _, sub := range subscriptions {
		if !c.subs.add(sub.pattern) {
			continue
		}

		if err := c.subscribe(sub.pattern, sub.handler); err != nil {
			c.subs.remove(sub.pattern)
			c.getLogger().Error("subscribe failed",
				"pattern", sub.pattern,
				"error", err,
			)
			continue
		}

		c.getLogger().Debug("subscribed", "pattern", sub.pattern)
	}
}

// subscribe issues a single broker subscription with timeout.
func (c *Client) subscribe(pattern string, handler pahomqtt.MessageHandler) error {
	token := c.client.Subscribe(pattern, byte(c.cfg.QoS), handler)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout on %s", ErrSubscribeFailed, pattern)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// wrapHandler adds panic recovery around a message handler. A handler
// panic must not take down the paho router goroutine.
func (c *Client) wrapHandler(handler pahomqtt.MessageHandler) pahomqtt.MessageHandler {
	return func(client pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.getLogger().Error("panic in message handler",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()
		handler(client, msg)
	}
}

// handleStateMessage routes an inbound device state report to observers.
// Undecodable payloads and malformed topics are dropped silently; the
// wire is shared with devices we do not control.
func (c *Client) handleStateMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	deviceID, ok := ParseDeviceID(msg.Topic())
	if !ok {
		c.getLogger().Debug("state message on malformed topic", "topic", msg.Topic())
		return
	}

	state, stateMsg, ok := DecodeStatePayload(msg.Payload())
	if !ok {
		c.getLogger().Debug("undecodable state payload",
			"topic", msg.Topic(),
			"size", len(msg.Payload()),
		)
		return
	}

	c.hub.publishState(StateUpdate{
		DeviceID: deviceID,
		State:    state,
		Msg:      stateMsg,
	})
}

// handleStatusMessage routes an inbound device availability report to
// observers.
func (c *Client) handleStatusMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	deviceID, ok := ParseDeviceID(msg.Topic())
	if !ok {
		c.getLogger().Debug("status message on malformed topic", "topic", msg.Topic())
		return
	}

	online, ok := DecodeStatusPayload(msg.Payload())
	if !ok {
		c.getLogger().Debug("undecodable status payload",
			"topic", msg.Topic(),
			"size", len(msg.Payload()),
		)
		return
	}

	c.hub.publishStatus(StatusUpdate{
		DeviceID: deviceID,
		Online:   online,
		SeenAt:   time.Now().UTC(),
	})
}

// ObserveDeviceState returns a channel of state updates for one device.
//
// There is no replay: the channel only carries events received after
// this call. The channel is closed when ctx is cancelled. If the caller
// falls behind and the channel buffer fills, newer events are dropped
// for this observer only.
func (c *Client) ObserveDeviceState(ctx context.Context, deviceID string) <-chan StateUpdate {
	return c.hub.observeState(ctx, deviceID)
}

// ObserveDeviceStatus returns a channel of availability updates for one
// device. Semantics match ObserveDeviceState.
func (c *Client) ObserveDeviceStatus(ctx context.Context, deviceID string) <-chan StatusUpdate {
	return c.hub.observeStatus(ctx, deviceID)
}

// DroppedEvents returns how many inbound events were dropped because an
// observer buffer was full. Useful for health reporting.
func (c *Client) DroppedEvents() uint64 {
	return c.hub.droppedCount()
}
