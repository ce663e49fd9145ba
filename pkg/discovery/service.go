// Package discovery announces a rendezvous host over mDNS and browses
// for announced hosts. This is a diagnostic surface: pairing itself
// rides on the UDP token broadcast, but an announced service makes
// hosts visible to `hololink scan` without a rendered marker.
package discovery

import (
	"context"
	"net"
)

const (
	DefaultServiceType = "_holo-session._tcp"
	DefaultDomain      = "local"
)

// ServiceInfo describes one announced rendezvous host.
type ServiceInfo struct {
	Name     string // instance name, the host's instance ID
	Type     string // service type, e.g. "_holo-session._tcp"
	Domain   string // domain, e.g. "local"
	Addr     net.IP
	Port     int // the host's signaling port
	Instance string
}

// DiscoveryResult carries either a service snapshot or a browse error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

// Adapter abstracts the mDNS implementation.
type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}
