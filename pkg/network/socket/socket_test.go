package socket

import (
	"net"
	"testing"
)

func TestBusyPortIsAnError(t *testing.T) {
	l, err := ListenUDP(0)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()
	port := l.LocalAddr().(*net.UDPAddr).Port
	if _, err = ListenUDP(port); err == nil {
		t.Fatal("no error for a taken port")
	} else if !isPortBusy(err) {
		t.Errorf("busy port not recognized: %v", err)
	}
}

func TestListenerPortRoll(t *testing.T) {
	l, err := ListenUDP(0)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()
	port := l.LocalAddr().(*net.UDPAddr).Port
	l2, err := ListenUDPRoll(port)
	if err != nil {
		t.Fatalf("roll failed: %v", err)
	}
	defer l2.Close()
	if got := l2.LocalAddr().(*net.UDPAddr).Port; got == port {
		t.Error("rolled listener reuses the taken port")
	}
}
