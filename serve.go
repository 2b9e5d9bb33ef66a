package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/smart_house/state"
	. "github.com/elijahnyp/smart_house/util"
)

const (
	onlineInterval  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := NewHub()
	go hub.Run(ctx)

	publisher := MakeReportPublisher(houses)
	publisher.OnReport(func(report string, err error) {
		name := ""
		if house := houses.House(); house != nil {
			name = house.Name()
		}
		hub.BroadcastReport(name, report, err)
	})
	houses.OnReload(func(house *state.House) {
		report, err := GenerateReport("house", house)
		hub.BroadcastReport(house.Name(), report, err)
		if Client != nil && Client.IsConnected() {
			AdvertiseHA(house.Name(), house.RoomNames(), Client)
			publisher.PublishNow()
		}
	})

	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := houses.Reload(); err != nil {
			Logger.Error().Msgf("Error reloading house: %v", err)
		}
	})

	if Config.GetBool("mqtt_enabled") {
		RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
			if house := houses.House(); house != nil {
				AdvertiseHA(house.Name(), house.RoomNames(), client)
			}
		})
		RegisterMQTTSubscription(HouseTopic("report/get"), publisher.RequestHandler)
		if err := MqttInit(); err != nil {
			return err
		}
		RegisterNewConfigListener(func() {
			if err := MqttInit(); err != nil {
				Logger.Error().Msgf("Error reconnecting to broker: %v", err)
			}
		})
		defer MqttClose()
		go onlinePinger(ctx)
	} else {
		Logger.Info().Msg("mqtt disabled, reports are served over http only")
	}

	monitor := NewMonitorServer()
	(&webHandlers{houses: houses, hub: hub}).register(monitor)
	if err := monitor.Start(); err != nil {
		return err
	}
	RegisterNewConfigListener(monitor.Restart)

	publisher.Start()
	Logger.Info().Msgf("ready, monitor listening on %s", monitor.BoundAddr())

	<-ctx.Done()
	Logger.Info().Msg("shutting down")

	publisher.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return monitor.Shutdown(shutdownCtx)
}

func onlinePinger(ctx context.Context) {
	ticker := time.NewTicker(onlineInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := Publish(OnlineTopic(), false, "online"); err != nil {
				Logger.Error().Msgf("Error publishing online message: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
