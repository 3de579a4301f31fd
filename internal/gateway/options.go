package gateway

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homelink-core/internal/infrastructure/config"
)

const (
	// defaultEventBuffer is the per-observer channel capacity used when
	// the configured gateway event buffer is missing or invalid.
	defaultEventBuffer = 100

	// publishTimeout bounds how long a publish waits for broker ack.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is how long (ms) paho waits for in-flight
	// messages to complete on graceful disconnect.
	disconnectQuiesce = 250
)

// buildClientOptions translates gateway configuration into paho client
// options.
//
// Automatic reconnection is disabled deliberately: the reconnect
// scheduler in this package owns retry timing so the connection state
// machine stays accurate. The session is non-clean so broker-side
// subscriptions survive reconnects without resubscribing.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	opts.SetCleanSession(false)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout())
	opts.SetKeepAlive(cfg.KeepAlive())
	opts.SetOrderMatters(false)

	// Last will: if this process dies without a graceful disconnect the
	// broker announces the application offline on its behalf.
	opts.SetBinaryWill(Topics{}.AppStatus(), encodeAppStatus(false), byte(cfg.QoS), true)

	return opts
}
