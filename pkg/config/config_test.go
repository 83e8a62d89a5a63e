package config

import (
	"os"
	"testing"
)

func TestIceServersEnv(t *testing.T) {
	_ = os.Setenv("RONDO_ICESERVERS[0]_URLS", "stun:stun.example.com:3478")
	_ = os.Setenv("RONDO_ICESERVERS[1]_URLS", "turn:turn.example.com:3478")
	_ = os.Setenv("RONDO_ICESERVERS[1]_USERNAME", "u")
	_ = os.Setenv("RONDO_ICESERVERS[1]_CREDENTIAL", "p")
	defer func() {
		_ = os.Unsetenv("RONDO_ICESERVERS[0]_URLS")
		_ = os.Unsetenv("RONDO_ICESERVERS[1]_URLS")
		_ = os.Unsetenv("RONDO_ICESERVERS[1]_USERNAME")
		_ = os.Unsetenv("RONDO_ICESERVERS[1]_CREDENTIAL")
	}()

	w := Webrtc{IceServers: DefaultIceServers()}
	w.AddIceServersEnv()

	if len(w.IceServers) < 2 {
		t.Fatalf("expected at least 2 ice servers, got %v", w.IceServers)
	}
	if w.IceServers[0].Urls != "stun:stun.example.com:3478" {
		t.Errorf("env didn't override ice server 0: %+v", w.IceServers[0])
	}
	if w.IceServers[1].Urls != "turn:turn.example.com:3478" || w.IceServers[1].Username != "u" {
		t.Errorf("env didn't add ice server 1: %+v", w.IceServers[1])
	}
	if err := w.Validate(); err != nil {
		t.Errorf("valid servers rejected: %v", err)
	}
}

func TestIceValidation(t *testing.T) {
	tests := []struct {
		name    string
		servers []IceServer
		wantErr bool
	}{
		{name: "default ok", servers: DefaultIceServers()},
		{name: "no scheme", servers: []IceServer{{Urls: "whatever"}}, wantErr: true},
		{name: "unknown scheme", servers: []IceServer{{Urls: "http://x"}}, wantErr: true},
		{name: "turn without credentials", servers: []IceServer{{Urls: "turn:t:3478"}}, wantErr: true},
		{name: "turn with credentials", servers: []IceServer{{Urls: "turn:t:3478", Username: "u", Credential: "p"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Webrtc{IceServers: tt.servers}
			if err := w.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
