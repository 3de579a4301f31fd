package gateway

import "fmt"

// SendCommand publishes a command to a device's command topic.
//
// While the session is down the command is logged and discarded without
// error: device actuation is fire-and-forget, and the reconciliation
// layer will converge state once events flow again. A nil return
// therefore means "accepted", not "delivered".
func (c *Client) SendCommand(homeID, roomID, deviceID string, cmd Command) error {
	payload, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	if !c.IsConnected() {
		c.getLogger().Warn("not connected, dropping command",
			"device_id", deviceID,
			"action", cmd.commandAction(),
		)
		return nil
	}

	topic := Topics{}.DeviceCommand(homeID, roomID, deviceID)
	token := c.client.Publish(topic, byte(c.cfg.QoS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout on %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	c.getLogger().Debug("command published",
		"device_id", deviceID,
		"action", cmd.commandAction(),
	)
	return nil
}
