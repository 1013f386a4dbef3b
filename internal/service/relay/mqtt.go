package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"firewatch/internal/logger"
	"firewatch/internal/model"
)

const mqttQoS = 1

// ConnectMQTT connects to broker with automatic reconnects.
func ConnectMQTT(logger *logger.Logger, broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("MQTT connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warning("MQTT connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}

// MQTTRelay publishes each event to <topic>/<camera_id>.
type MQTTRelay struct {
	logger *logger.Logger
	client mqtt.Client
	topic  string
}

func NewMQTTRelay(logger *logger.Logger, client mqtt.Client, topic string) *MQTTRelay {
	return &MQTTRelay{logger: logger, client: client, topic: topic}
}

func (r *MQTTRelay) ID() string { return "mqtt:" + r.topic }

func (r *MQTTRelay) Send(ctx context.Context, ev model.StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("Failed to encode status event", "error", err)
		return nil
	}

	topic := r.topic + "/" + ev.Data.CameraID
	token := r.client.Publish(topic, mqttQoS, false, payload)

	wait := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if !token.WaitTimeout(wait) {
		r.logger.Warning("MQTT publish timeout", "topic", topic)
		return nil
	}
	if err := token.Error(); err != nil {
		r.logger.Warning("MQTT publish failed", "topic", topic, "error", err)
	}
	return nil
}

func (r *MQTTRelay) Close() error {
	r.client.Disconnect(250)
	return nil
}
