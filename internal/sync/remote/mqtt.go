package remote

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	shopsync "github.com/kimhsiao/shopfloor/backend/internal/sync"
)

// publishQoS asks the broker to acknowledge every record.
const publishQoS byte = 1

// publisher is the part of mqtt.Client the transport uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTT publishes each record to {prefix}/{tenant}/{entity}/{action}. A broker
// acknowledgement within the timeout is success.
type MQTT struct {
	client  publisher
	prefix  string
	tenant  string
	timeout time.Duration
	log     *logging.Logger
}

// NewMQTT creates the transport and starts connecting in the background;
// the device may well be offline at startup.
func NewMQTT(cfg config.MQTTRemoteConfig, tenantID string, log *logging.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, apperrors.New(apperrors.ErrConfig, "mqtt broker is required")
	}
	log = logging.OrNop(log).Named("remote.mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetCleanSession(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("broker connection lost", map[string]interface{}{"error": err.Error()})
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("broker connected", map[string]interface{}{"broker": cfg.Broker})
	})

	client := mqtt.NewClient(opts)
	client.Connect()

	return newMQTT(client, cfg, tenantID, log), nil
}

func newMQTT(client publisher, cfg config.MQTTRemoteConfig, tenantID string, log *logging.Logger) *MQTT {
	return &MQTT{
		client:  client,
		prefix:  strings.Trim(cfg.TopicPrefix, "/"),
		tenant:  tenantID,
		timeout: cfg.Timeout,
		log:     logging.OrNop(log),
	}
}

// SyncCreate publishes a create record.
func (m *MQTT) SyncCreate(ctx context.Context, req shopsync.Request) (bool, error) {
	return m.publish(ctx, req)
}

// SyncUpdate publishes an update record.
func (m *MQTT) SyncUpdate(ctx context.Context, req shopsync.Request) (bool, error) {
	return m.publish(ctx, req)
}

// Topic returns the topic a record kind is published to.
func (m *MQTT) Topic(req shopsync.Request) string {
	parts := []string{m.tenant, string(req.Kind.Entity), string(req.Kind.Action)}
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// HealthCheck reports whether the broker connection is up.
func (m *MQTT) HealthCheck(context.Context) error {
	if !m.client.IsConnectionOpen() {
		return apperrors.New(apperrors.ErrTransport, "broker not connected")
	}
	return nil
}

// Close disconnects, giving in-flight publishes a moment to finish.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

func (m *MQTT) publish(ctx context.Context, req shopsync.Request) (bool, error) {
	if !m.client.IsConnectionOpen() {
		return false, apperrors.New(apperrors.ErrTransport, "broker not connected")
	}
	msg, err := newMessage(req)
	if err != nil {
		return false, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrTransport, "encode message", err)
	}

	topic := m.Topic(req)
	token := m.client.Publish(topic, publishQoS, false, body)

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		token.Wait()
	} else if !token.WaitTimeout(timeout) {
		return false, apperrors.Newf(apperrors.ErrTransport, "no broker ack on %s within %s", topic, timeout)
	}
	if err := token.Error(); err != nil {
		return false, apperrors.Wrap(apperrors.ErrTransport, "publish to "+topic, err)
	}

	m.log.Debug("published", map[string]interface{}{"topic": topic, "record_id": req.RecordID})
	return true, nil
}
