package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/brutella/dnssd"
)

type MDNSAdapter struct{}

// Announce registers the host's session service on the local segment
// and responds to queries until the context is cancelled.
func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := map[string]string{
		"desc":     "holoLink session host",
		"instance": serviceInfo.Instance,
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceInfo.Type,
		Domain: serviceInfo.Domain,
		// mDNS multicasts on every interface; no fixed IPs needed.
		IPs:  nil,
		Text: text,
		Port: serviceInfo.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is the normal way to stop announcing.
		if err == context.Canceled {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS queries: %w", err)
	}
	return nil
}

// Discover browses for announced session hosts and emits a fresh
// snapshot whenever the set changes.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	var (
		mu      sync.Mutex
		entries = make(map[string]ServiceInfo)
		outCh   = make(chan DiscoveryResult, 10)
	)

	sendSnapshot := func() {
		mu.Lock()
		snapshot := make([]ServiceInfo, 0, len(entries))
		for _, entry := range entries {
			snapshot = append(snapshot, entry)
		}
		mu.Unlock()
		select {
		case outCh <- DiscoveryResult{Services: snapshot}:
		default:
		}
	}

	addFn := func(e dnssd.BrowseEntry) {
		info := ServiceInfo{
			Name:     e.Name,
			Type:     e.Type,
			Domain:   e.Domain,
			Port:     e.Port,
			Instance: e.Text["instance"],
		}
		if len(e.IPs) > 0 {
			info.Addr = e.IPs[0]
		}
		mu.Lock()
		entries[fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)] = info
		mu.Unlock()
		sendSnapshot()
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		delete(entries, fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain))
		mu.Unlock()
		sendSnapshot()
	}

	go func() {
		defer close(outCh)
		if err := dnssd.LookupType(ctx, service, addFn, rmvFn); err != nil {
			select {
			case outCh <- DiscoveryResult{Error: fmt.Errorf("mDNS lookup failed: %w", err)}:
			default:
			}
		}
	}()

	return outCh
}
