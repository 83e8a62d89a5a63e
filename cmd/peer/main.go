package main

import (
	"context"
	goflag "flag"
	"time"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/config"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/monitoring"
	"github.com/rondohq/rondo/pkg/network"
	"github.com/rondohq/rondo/pkg/os"
	"github.com/rondohq/rondo/pkg/rtc"
	"github.com/rondohq/rondo/pkg/service"
	"github.com/rondohq/rondo/pkg/session"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewPeerConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Peer.Debug, "p", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	room := conf.Peer.Room
	if room.Id == "" {
		log.Fatal().Msg("no room, set --room (and --host to create it)")
	}

	factory, err := rtc.NewApiFactory(conf.Webrtc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc init failed")
	}
	s := session.New(conf.Peer, factory, log)

	var services service.Group
	if conf.Peer.Monitoring.IsEnabled() {
		services.Add(monitoring.New(conf.Peer.Monitoring, "peer", log))
	}
	services.Start()
	defer func() {
		if err := services.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()

	// keep knocking until the relay answers
	term := os.ExpectTermination()
	for r := network.NewRetry(); ; r.Fail() {
		if room.Host {
			err = s.Host(room.Id, api.Topology(room.Topology), room.Capacity, room.Tags)
		} else {
			err = s.Join(room.Id, api.Topology(room.Topology))
		}
		if err == nil {
			break
		}
		log.Error().Err(err).Msgf("couldn't enter room %v, next try in %v", room.Id, r.Time())
		select {
		case <-term:
			return
		case <-time.After(r.Time()):
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		s.Close()
		close(stopped)
	}()
	go logEvents(s.Events(), log)

	<-term
	cancel()
	<-stopped
}

func logEvents(events <-chan session.Event, log *logger.Logger) {
	for ev := range events {
		switch ev.T {
		case session.EventStateChanged:
			log.Info().Msgf("lifecycle: %v", ev.State)
		case session.EventMatchReady:
			log.Info().Msg("the match is ready")
		case session.EventPeerConnected:
			log.Info().Msgf("connected to peer %v", ev.Peer)
		case session.EventPeerLeft:
			log.Info().Msgf("peer %v left", ev.Peer)
		case session.EventRoomClosed:
			log.Info().Msg("the room was closed")
		case session.EventLobbyUpdated:
			log.Info().Msgf("lobby: %v rooms", len(ev.Rooms))
		case session.EventConnectionError:
			log.Error().Err(ev.Err).Msg("connection error")
		}
	}
}
