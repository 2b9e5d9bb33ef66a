package util

import (
	"crypto/rand"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "smart_house"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	randBytes := make([]byte, n)
	if _, err := rand.Read(randBytes); err != nil {
		for i := range b {
			b[i] = letterBytes[i%len(letterBytes)]
		}
		return string(b)
	}
	for i := range b {
		b[i] = letterBytes[int(randBytes[i])%len(letterBytes)]
	}
	return string(b)
}

// DefaultHouse is the layout used when no config file describes one.
func DefaultHouse() map[string]any {
	return map[string]any{
		"name": "Дом, милый дом",
		"device_sets": []any{
			map[string]any{
				"name": "kitchen",
				"devices": []any{
					map[string]any{"name": "розетка для аквариума", "kind": KindSocket},
					map[string]any{"name": "термометр для аквариума", "kind": KindThermometer},
				},
			},
			map[string]any{
				"name": "storage",
				"devices": []any{
					map[string]any{"name": "термометр для самогонного аппарата", "kind": KindThermometer},
				},
			},
		},
		"rooms": []any{
			map[string]any{
				"name": "Зал",
				"devices": []any{
					map[string]any{"name": "розетка для телевизора", "kind": KindSocket},
				},
			},
			map[string]any{"name": "Кухня", "device_set": "kitchen"},
			map[string]any{"name": "Кладовка", "device_set": "storage"},
		},
	}
}

func setDefaults() {
	Config.SetDefault("log_level", "info")
	Config.SetDefault("mqtt_enabled", true)
	Config.SetDefault("broker_uri", "tcp://mqtt:1883")
	Config.SetDefault("cleansess", false)
	Config.SetDefault("id_base", "smart_house")
	Config.SetDefault("username", "")
	Config.SetDefault("password", "")
	Config.SetDefault("details_port", 8080)
	Config.SetDefault("report_topic_base", "smart_house")
	Config.SetDefault("report_frequency", 60)
	Config.SetDefault("report_workers", 2)
	Config.SetDefault("publish_snapshots", false)
	Config.SetDefault("house", DefaultHouse())
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults()

	// config file
	Config.SetConfigName("smart_house")
	Config.AddConfigPath("/")
	Config.AddConfigPath("./")
	Config.AddConfigPath("./config")
	Config.AddConfigPath("/etc")
	Config.AddConfigPath("/smart_house")
	Config.AddConfigPath("/smart_house/config")

	if err := Config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			Logger.Info().Msg("no config file found, using defaults")
		} else {
			Logger.Error().Msgf("unable to read config file: %v", err)
		}
	}

	// environment variables
	Config.AutomaticEnv()

	// watch for changes
	if Config.ConfigFileUsed() != "" {
		Config.OnConfigChange(func(e fsnotify.Event) {
			Logger.Info().Msgf("Config file changed: %v", e.Name)
			Logger.Debug().Msgf("Config Additional Info: %v", e.String())
			OnNewConfig()
		})
		Config.WatchConfig()
	}
}
