package util

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvailability struct {
	Topic               string `json:"topic"`                 // : "smart_house/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "Дом, милый дом"
	Identifiers []string `json:"ids"`  // : ["smart_house"]
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	Availability        []HAAvailability `json:"availability"`
	Device              HADeviceSpec     `json:"device"`
	UniqueID            string           `json:"uniq_id"`               // "smart_house-room_1a2b3c4d"
	Name                string           `json:"name"`                  // : "Кухня"
	StateTopic          string           `json:"state_topic"`           // : "smart_house/room_1a2b3c4d/status"
	JsonAttributesTopic string           `json:"json_attributes_topic"` // : "smart_house/room_1a2b3c4d/attributes"
	Icon                string           `json:"icon,omitempty"`
	Platform            string           `json:"platform"` // "sensor"
	Qos                 int              `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// RoomObjectID is a topic and discovery safe id for a room name. Room names
// are free text, so they are hashed rather than slugged.
func RoomObjectID(room string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room)) //nolint:errcheck // fnv never fails
	return fmt.Sprintf("room_%08x", h.Sum32())
}

// RoomTopic is the topic for one aspect (report, status, attributes) of a room.
func RoomTopic(room, leaf string) string {
	return TopicBase() + "/" + RoomObjectID(room) + "/" + leaf
}

func HouseTopic(leaf string) string {
	return TopicBase() + "/" + leaf
}

func ConstructHAAdvertisement(house, room string) HAAdvertisement {
	base := TopicBase()
	return HAAdvertisement{
		Name:                room,
		StateTopic:          RoomTopic(room, "status"),
		JsonAttributesTopic: RoomTopic(room, "attributes"),
		Availability: []HAAvailability{
			{
				Topic:               OnlineTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:      0,
		UniqueID: base + "-" + RoomObjectID(room),
		Icon:     "mdi:home-analytics",
		Platform: "sensor",
		Device: HADeviceSpec{
			Name:        house,
			Identifiers: []string{base},
		},
	}
}

// AdvertiseHA publishes a Home Assistant sensor config for every room.
func AdvertiseHA(house string, rooms []string, client MQTT.Client) {
	for _, room := range rooms {
		ha := ConstructHAAdvertisement(house, room)
		topic := "homeassistant/sensor/" + TopicBase() + "/" + RoomObjectID(room) + "/config"
		if token := client.Publish(topic, 0, true, ha.ToJson()); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Publishing: %v", token.Error())
		}
	}
}
