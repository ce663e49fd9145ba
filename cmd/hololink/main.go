package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/nlev27/holoLink/pkg/broadcast"
	clientApp "github.com/nlev27/holoLink/pkg/client"
	"github.com/nlev27/holoLink/pkg/discovery"
	hostApp "github.com/nlev27/holoLink/pkg/host"
	"github.com/nlev27/holoLink/pkg/marker"
	"github.com/nlev27/holoLink/pkg/rendezvous"
	"github.com/nlev27/holoLink/pkg/session"
	"github.com/nlev27/holoLink/pkg/ui"
)

func main() {
	f, _ := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}()
	log.SetOutput(f)

	var (
		broadcastPort int
		signalingPort int
		noAutoStart   bool
	)

	cmd := &cobra.Command{
		Use:   "hololink",
		Short: "LAN rendezvous between an AR headset and its companion device",
	}
	cmd.PersistentFlags().IntVar(&broadcastPort, "broadcast-port", broadcast.DefaultPort, "UDP port for marker broadcasts")
	cmd.PersistentFlags().IntVar(&signalingPort, "signaling-port", session.DefaultSignalingPort, "TCP port for session signaling")
	cmd.PersistentFlags().BoolVar(&noAutoStart, "no-autostart", false, "Build the role but leave discovery disarmed")

	var (
		interval time.Duration
		announce bool
	)
	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Run the headset side: broadcast detected markers, answer sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ui.InitialModel(rendezvous.RoleHost, ui.Options{
				Host: hostApp.Config{
					AutoStart:         !noAutoStart,
					BroadcastPort:     broadcastPort,
					SignalingPort:     signalingPort,
					BroadcastInterval: interval,
					Announce:          announce,
				},
			})
			if err != nil {
				return err
			}
			if _, err := tea.NewProgram(model).Run(); err != nil {
				return fmt.Errorf("host ui: %w", err)
			}
			return nil
		},
	}
	hostCmd.Flags().DurationVar(&interval, "interval", broadcast.DefaultInterval, "Broadcast repeat interval")
	hostCmd.Flags().BoolVar(&announce, "announce", true, "Announce the session service over mDNS")

	var (
		markerID       int
		startDelay     time.Duration
		connectTimeout time.Duration
	)
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Run the companion side: listen for the rendered marker's token",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ui.InitialModel(rendezvous.RoleClient, ui.Options{
				Client: clientApp.Config{
					AutoStart:      !noAutoStart,
					BroadcastPort:  broadcastPort,
					SignalingPort:  signalingPort,
					MarkerID:       marker.ID(markerID),
					StartDelay:     startDelay,
					ConnectTimeout: connectTimeout,
				},
			})
			if err != nil {
				return err
			}
			if _, err := tea.NewProgram(model).Run(); err != nil {
				return fmt.Errorf("client ui: %w", err)
			}
			return nil
		},
	}
	clientCmd.Flags().IntVar(&markerID, "marker", 0, "ID of the marker this device rendered")
	clientCmd.Flags().DurationVar(&startDelay, "start-delay", 0, "Listening warm-up delay (0 = default)")
	clientCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 0, "Bound on each connect attempt (0 = default)")
	_ = clientCmd.MarkFlagRequired("marker")

	var scanTimeout time.Duration
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Browse for announced session hosts on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), scanTimeout)
		},
	}
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 5*time.Second, "How long to browse")

	cmd.AddCommand(hostCmd)
	cmd.AddCommand(clientCmd)
	cmd.AddCommand(scanCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func runScan(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	adapter := &discovery.MDNSAdapter{}
	service := fmt.Sprintf("%s.%s.", discovery.DefaultServiceType, discovery.DefaultDomain)

	var last []discovery.ServiceInfo
	for result := range adapter.Discover(ctx, service) {
		if result.Error != nil {
			return result.Error
		}
		last = result.Services
	}

	if len(last) == 0 {
		fmt.Println("No session hosts found")
		return nil
	}
	for _, svc := range last {
		fmt.Printf("%-24s %-16s %d\n", svc.Name, svc.Addr, svc.Port)
	}
	return nil
}
