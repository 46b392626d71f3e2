// Package mqttadapter implements the MQTT message-broker adapter (spec.md
// §4.3): a single broker session, subscribed at QoS at_least_once to either
// an explicit topic list or "#", forwarding each (topic, payload) into the
// pipeline as a Message entity. Grounded on the teacher's
// internal/mqttclient/client.go wrapper around paho.mqtt.golang, extended
// with the device-uuid-bound topic routing and TLS client-certificate
// support spec.md §4.3/§6 require.
package mqttadapter

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/pipeline"
)

// Options configures the adapter (spec.md §4.3).
type Options struct {
	BrokerURL string
	ClientID  string
	Source    string // identity used as the pipeline entity's Source field
	Topics    []pipeline.TopicRoute
	Username  string
	Password  string

	TLSCert string
	TLSKey  string
	TLSCA   string

	ReconnectInterval time.Duration // default 5s, spec.md §4.3
	Log               zerolog.Logger
}

// Adapter owns one MQTT broker session and drives arriving messages through
// a pipeline (spec.md §4.3, §4.1 TopicMapper row).
type Adapter struct {
	opts      Options
	pipeline  *pipeline.Pipeline
	conn      mqtt.Client
	connected atomic.Bool

	// Archive, if set, records every raw payload for audit purposes before
	// it enters the pipeline (SPEC_FULL §17.2), bound to an
	// internal/archive.Archiver by the caller.
	Archive func(route, source string, payload []byte)
}

func New(opts Options, p *pipeline.Pipeline) *Adapter {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 5 * time.Second
	}
	return &Adapter{opts: opts, pipeline: p}
}

// Connect opens the broker session and subscribes to every configured
// topic (bare or "<deviceUuid>:<pattern>", spec.md §6) at QoS
// at_least_once. A fixed-interval timer retries on disconnect/error
// (spec.md §4.3); paho's AutoReconnect provides that retry loop natively.
func (a *Adapter) Connect() error {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(a.opts.BrokerURL).
		SetClientID(a.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(a.opts.ReconnectInterval).
		SetOrderMatters(false).
		SetOnConnectHandler(a.onConnect).
		SetConnectionLostHandler(a.onConnectionLost).
		SetDefaultPublishHandler(a.onMessage)

	if a.opts.Username != "" {
		clientOpts.SetUsername(a.opts.Username)
	}
	if a.opts.Password != "" {
		clientOpts.SetPassword(a.opts.Password)
	}
	if a.opts.TLSCert != "" || a.opts.TLSCA != "" {
		tlsConfig, err := buildTLSConfig(a.opts.TLSCert, a.opts.TLSKey, a.opts.TLSCA)
		if err != nil {
			return err
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	a.conn = mqtt.NewClient(clientOpts)
	token := a.conn.Connect()
	token.Wait()
	return token.Error()
}

func buildTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cfg := &tls.Config{}
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(pem)
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func (a *Adapter) onConnect(client mqtt.Client) {
	a.connected.Store(true)
	a.opts.Log.Info().Str("broker", a.opts.BrokerURL).Msg("mqtt connected, subscribing")

	a.pipeline.Run(pipeline.NewConnectionStatus(a.opts.Source, pipeline.StatusConnected, time.Now()))

	filters := a.subscriptionFilters()
	token := client.SubscribeMultiple(filters, nil)
	token.Wait()
	if err := token.Error(); err != nil {
		a.opts.Log.Error().Err(err).Msg("mqtt subscribe failed")
	}
}

// subscriptionFilters strips the optional "<deviceUuid>:" prefix before
// subscribing — that prefix is routing metadata for TopicMapper, not part
// of the MQTT topic filter itself (spec.md §6).
func (a *Adapter) subscriptionFilters() map[string]byte {
	if len(a.opts.Topics) == 0 {
		return map[string]byte{"#": 1} // QoS 1 = at_least_once
	}
	filters := make(map[string]byte, len(a.opts.Topics))
	for _, t := range a.opts.Topics {
		filters[t.Pattern] = 1
	}
	return filters
}

func (a *Adapter) onConnectionLost(_ mqtt.Client, err error) {
	a.connected.Store(false)
	a.opts.Log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
	a.pipeline.Run(pipeline.NewConnectionStatus(a.opts.Source, pipeline.StatusDisconnected, time.Now()))
}

func (a *Adapter) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if a.Archive != nil {
		a.Archive("mqtt", a.opts.Source, msg.Payload())
	}
	a.pipeline.Run(pipeline.NewMessage(a.opts.Source, msg.Topic(), msg.Payload(), time.Now()))
}

func (a *Adapter) IsConnected() bool { return a.connected.Load() }

func (a *Adapter) Close() {
	a.opts.Log.Info().Msg("disconnecting mqtt adapter")
	if a.conn != nil {
		a.conn.Disconnect(1000)
	}
}

// Routes returns the TopicRoute list this adapter was configured with, for
// wiring into a NewTopicMapper node.
func (a *Adapter) Routes() []pipeline.TopicRoute { return a.opts.Topics }

// ParseTopics splits a comma-separated topic configuration string into
// routes, recognizing the "<deviceUuid>:<pattern>" binding form (spec.md
// §6), grounded on the teacher's parseTopics (internal/mqttclient/client.go).
func ParseTopics(raw string) []pipeline.TopicRoute {
	var routes []pipeline.TopicRoute
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if device, pattern, ok := strings.Cut(t, ":"); ok {
			routes = append(routes, pipeline.TopicRoute{Pattern: pattern, DeviceUUID: device})
		} else {
			routes = append(routes, pipeline.TopicRoute{Pattern: t})
		}
	}
	return routes
}
