package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type PeerConfig struct {
	Peer    Peer
	Webrtc  Webrtc
	Version Version
}

type Peer struct {
	Debug      bool
	Monitoring Monitoring
	Network    struct {
		RelayAddress string
		Secure       bool
	}
	Room struct {
		Id       string
		Host     bool
		Topology string
		Capacity int
		Tags     []string
	}
	// HandshakeTimeout bounds every peer negotiation, measured from the
	// moment the remote peer becomes known.
	HandshakeTimeout time.Duration
}

// allows custom config path
var peerConfigPath string

func NewPeerConfig() (conf PeerConfig) {
	conf = PeerConfig{
		Peer: Peer{
			Monitoring:       Monitoring{Port: 6602, URLPrefix: "/peer"},
			HandshakeTimeout: 15 * time.Second,
		},
		Webrtc: Webrtc{IceServers: DefaultIceServers()},
	}
	conf.Peer.Network.RelayAddress = "localhost:8000"
	conf.Peer.Room.Topology = "mesh"
	if err := load(&conf, peerConfigPath); err != nil {
		panic(err)
	}
	conf.Webrtc.AddIceServersEnv()
	return
}

func (c *PeerConfig) ParseFlags() {
	fs := flag.CommandLine
	fs.StringVar(&c.Peer.Network.RelayAddress, "relay", c.Peer.Network.RelayAddress, "Relay server address (host:port)")
	fs.StringVar(&c.Peer.Room.Id, "room", c.Peer.Room.Id, "Room id to host or join")
	fs.BoolVar(&c.Peer.Room.Host, "host", c.Peer.Room.Host, "Create the room when it doesn't exist")
	fs.StringVar(&c.Peer.Room.Topology, "topology", c.Peer.Room.Topology, "Room topology: [mesh, server_authoritative]")
	fs.IntVar(&c.Peer.Room.Capacity, "capacity", c.Peer.Room.Capacity, "Room capacity when creating")
	fs.StringSliceVar(&c.Peer.Room.Tags, "tags", c.Peer.Room.Tags, "Room tags when creating")
	flag.StringVar(&peerConfigPath, "conf", peerConfigPath, "Set custom configuration file path")
	flag.Parse()
}
