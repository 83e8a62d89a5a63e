package httpx

import (
	"net"
	"strconv"
)

type Address string

// SplitHostPort breaks the address apart, tolerating input with no port.
func (a Address) SplitHostPort() (string, int) {
	host, port, err := net.SplitHostPort(string(a))
	if err != nil {
		return string(a), 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

// buildAddress joins the host of the first param with the zone subdomain
// and the port of the listener from the last param.
//
// As example, address host.com:8080, zone z, and listener 1.2.3.4:8888
// will be transformed to z.host.com:8888.
func buildAddress(address string, zone string, l Listener) string {
	addr, _, err := net.SplitHostPort(address)
	if err != nil {
		addr = address
	}
	if addr == "" {
		addr = "localhost"
	}
	addr = withZonePrefix(addr, zone)
	port := l.GetPort()
	if port > 0 && port != 80 && port != 443 {
		addr += ":" + strconv.Itoa(port)
	}
	return addr
}

func withZonePrefix(host string, zone string) string {
	if zone == "" {
		return host
	}
	return zone + "." + host
}

func extractHost(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err == nil {
		return host
	}
	return address
}
