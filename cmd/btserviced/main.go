//go:build linux

// btserviced is the Bluetooth system daemon: it binds a BlueZ-backed HAL,
// brings up the dispatch hubs and the adapter, and serves CLI requests over
// a unix domain socket until it is signalled to stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/3EleVen/android-system-bt/config"
	"github.com/3EleVen/android-system-bt/ipc"
	"github.com/3EleVen/android-system-bt/logger"
	"github.com/3EleVen/android-system-bt/service"
	"github.com/3EleVen/android-system-bt/service/hal"
	"github.com/3EleVen/android-system-bt/service/hal/bluez"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "btserviced: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "btserviced: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.DebugJSON("main", "Loaded configuration", cfg)

	if err := run(cfg); err != nil {
		logger.Error("main", "%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	stack, err := bluez.Open(cfg.Adapter.ID)
	if err != nil {
		return fmt.Errorf("failed to open stack: %w", err)
	}
	defer stack.Close()

	if err := hal.InitializeBluetoothInterface(stack.Adapter()); err != nil {
		return err
	}
	defer hal.CleanUpBluetoothInterface()

	if err := hal.InitializeGattInterface(stack.Gatt()); err != nil {
		return err
	}
	defer hal.CleanUpGattInterface()

	adapter := service.NewAdapter()
	defer adapter.Close()

	if cfg.Adapter.Name != "" {
		adapter.SetName(cfg.Adapter.Name)
	}

	server := ipc.NewServer(adapter)
	if err := server.Start(cfg.SocketPath); err != nil {
		return err
	}
	defer server.Stop()

	logger.Info("main", "🚀 btserviced up, adapter hci%d", cfg.Adapter.ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("main", "Received %s, shutting down", sig)
	return nil
}
