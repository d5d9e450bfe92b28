package connectivity

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fleetsync/infra/logger"
)

// MQTTConfig defines the broker connection for the MQTT probe.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// MQTTProbe reports reachability from the fleet broker's connection
// state. Deployments that already keep a broker session use it instead
// of HTTP polling: Paho tracks the link and reconnects on its own.
type MQTTProbe struct {
	cli paho.Client
	log logger.Logger
}

// NewMQTTProbe connects to the broker with auto-reconnect enabled. The
// initial connect failing is not an error; the probe simply reports
// offline until the broker becomes reachable.
func NewMQTTProbe(cfg MQTTConfig) (*MQTTProbe, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt probe: broker must be set")
	}
	log := logger.New("mqtt_probe")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.ConnectRetry = true
	opts.ConnectRetryInterval = 5 * time.Second
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Warnf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		log.Debugf("reconnecting to MQTT broker")
	}

	cli := paho.NewClient(opts)
	cli.Connect() // retries in the background, state is read via IsConnectionOpen
	return &MQTTProbe{cli: cli, log: log}, nil
}

// Probe reports the current broker connection state.
func (p *MQTTProbe) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.cli.IsConnectionOpen() {
		return fmt.Errorf("broker connection down")
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTProbe) Close() {
	p.cli.Disconnect(250)
}
