package config

import (
	"fmt"
	"strings"
)

type Webrtc struct {
	DisableDefaultInterceptors bool
	DtlsRole                   byte
	IceServers                 []IceServer
	IcePorts                   struct {
		Min uint16
		Max uint16
	}
	IceIpMap   string
	IceLite    bool
	SinglePort int
	LogLevel   int
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (w *Webrtc) HasDtlsRole() bool   { return w.DtlsRole > 0 }
func (w *Webrtc) HasPortRange() bool  { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w *Webrtc) HasSinglePort() bool { return w.SinglePort > 0 }
func (w *Webrtc) HasIceIpMap() bool   { return w.IceIpMap != "" }

// DefaultIceServers is the fallback when nothing is configured.
func DefaultIceServers() []IceServer {
	return []IceServer{{Urls: "stun:stun.l.google.com:19302"}}
}

// AddIceServersEnv merges ICE servers from the environment
// (RONDO_ICESERVERS[n]_URLS and friends) over the configured list.
func (w *Webrtc) AddIceServersEnv() {
	cfg := Webrtc{IceServers: []IceServer{{}, {}, {}, {}, {}}}
	_ = LoadConfigEnv(&cfg)
	for i, ice := range cfg.IceServers {
		if ice.Urls == "" {
			continue
		}
		if i > len(w.IceServers)-1 {
			w.IceServers = append(w.IceServers, ice)
		} else {
			w.IceServers[i] = ice
		}
	}
}

// Validate checks the ICE server list shape: a known scheme in every url,
// and credentials on every TURN entry.
func (w *Webrtc) Validate() error {
	for _, ice := range w.IceServers {
		scheme, _, found := strings.Cut(ice.Urls, ":")
		if !found {
			return fmt.Errorf("ice server url [%v] has no scheme", ice.Urls)
		}
		switch scheme {
		case "stun", "stuns":
		case "turn", "turns":
			if ice.Username == "" || ice.Credential == "" {
				return fmt.Errorf("turn server [%v] needs both username and credential", ice.Urls)
			}
		default:
			return fmt.Errorf("ice server url [%v] has unknown scheme %v", ice.Urls, scheme)
		}
	}
	return nil
}
