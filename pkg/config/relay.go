package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type RelayConfig struct {
	Relay   Relay
	Webrtc  Webrtc
	Version Version
}

type Relay struct {
	Debug      bool
	Monitoring Monitoring
	Origin     string
	Rooms      Rooms
	Server     Server
}

type Rooms struct {
	// DefaultCapacity is used when a join asks for no seats at all.
	DefaultCapacity int
	// StaleAfter is how long a room may stay quiet before the sweeper
	// takes it down; SweepEvery is the sweeper period.
	StaleAfter time.Duration
	SweepEvery time.Duration
}

// allows custom config path
var relayConfigPath string

func NewRelayConfig() (conf RelayConfig) {
	conf = RelayConfig{
		Relay: Relay{
			Monitoring: Monitoring{Port: 6601, URLPrefix: "/relay"},
			Rooms: Rooms{
				DefaultCapacity: 2,
				StaleAfter:      60 * time.Second,
				SweepEvery:      60 * time.Second,
			},
			Server: Server{Address: ":8000"},
		},
		Webrtc: Webrtc{IceServers: DefaultIceServers()},
	}
	if err := load(&conf, relayConfigPath); err != nil {
		panic(err)
	}
	conf.Webrtc.AddIceServersEnv()
	return
}

func (c *RelayConfig) ParseFlags() {
	c.Relay.Server.WithFlags(flag.CommandLine)
	flag.IntVar(&c.Relay.Monitoring.Port, "monitoring.port", c.Relay.Monitoring.Port, "Monitoring server port")
	flag.StringVar(&relayConfigPath, "conf", relayConfigPath, "Set custom configuration file path")
	flag.Parse()
}
