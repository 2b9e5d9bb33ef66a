package util

import (
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 5 * time.Second

var Client MQTT.Client

var subscriptions map[string]MQTT.MessageHandler

var connectHandlers map[string]func(MQTT.Client)

// TopicBase is the prefix for every topic this service publishes or listens on.
func TopicBase() string {
	return Config.GetString("report_topic_base")
}

func OnlineTopic() string {
	return TopicBase() + "/online"
}

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	subscribe()
	client.Publish(OnlineTopic(), 0, false, "online").Wait()
	for _, handler := range connectHandlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe() {
	for topic, handler := range subscriptions {
		if token := Client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error subscribing to %s: %v", topic, token.Error())
		}
	}
}

func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Info().Msgf("Connect lost: %v", err)
}

// Publish sends payload to topic and waits for the broker to take it.
func Publish(topic string, retained bool, payload any) error {
	if Client == nil || !Client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := Client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func MqttInit() error {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("broker_uri"))
	opts.SetClientID(Config.GetString("id_base") + "_" + GetRandString(6))
	opts.SetUsername(Config.GetString("username"))
	opts.SetPassword(Config.GetString("password"))
	opts.SetCleanSession(Config.GetBool("cleansess"))
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttTimeout)
	opts.SetWill(OnlineTopic(), "offline", 0, false)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)

	MqttClose()

	Client = MQTT.NewClient(opts)

	token := Client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("connecting to %s: timed out", Config.GetString("broker_uri"))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to %s: %w", Config.GetString("broker_uri"), err)
	}
	return nil
}

// MqttClose announces offline and disconnects the current client, if any.
func MqttClose() {
	if Client == nil {
		return
	}
	Logger.Debug().Msg("Client exists - destroying")
	if Client.IsConnected() {
		Client.Publish(OnlineTopic(), 0, false, "offline").WaitTimeout(mqttTimeout)
		Client.Disconnect(1000)
	}
	Client = nil
}
