package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnnounceStopsOnCancel(t *testing.T) {
	// mDNS is unreliable on CI hosts.
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &MDNSAdapter{}
	serviceInfo := ServiceInfo{
		Name:     "hmd-test",
		Type:     "_holo-test._tcp",
		Domain:   DefaultDomain,
		Port:     50418,
		Instance: "test-instance",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.Announce(ctx, serviceInfo)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err, "cancellation must not surface as an error")
	case <-time.After(5 * time.Second):
		t.Fatal("announce did not stop after cancel")
	}
}

func TestDiscoverFindsAnnouncedHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &MDNSAdapter{}
	serviceInfo := ServiceInfo{
		Name:     "hmd-test",
		Type:     "_holo-test._tcp",
		Domain:   DefaultDomain,
		Port:     50418,
		Instance: "test-instance",
	}

	go func() { _ = adapter.Announce(ctx, serviceInfo) }()
	time.Sleep(300 * time.Millisecond)

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()

	service := fmt.Sprintf("%s.%s.", serviceInfo.Type, serviceInfo.Domain)
	result := <-adapter.Discover(queryCtx, service)
	if result.Error != nil {
		t.Fatalf("failed to discover service: %v", result.Error)
	}
	if assert.NotEmpty(t, result.Services) {
		got := result.Services[0]
		assert.Equal(t, serviceInfo.Name, got.Name)
		assert.Equal(t, serviceInfo.Port, got.Port)
		assert.Equal(t, serviceInfo.Instance, got.Instance)
	}
}
