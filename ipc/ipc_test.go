package ipc

import (
	"path/filepath"
	"testing"

	"github.com/3EleVen/android-system-bt/service"
	"github.com/3EleVen/android-system-bt/service/hal"
)

func startTestServer(t *testing.T) (*Client, *hal.FakeBluetoothInterface) {
	t.Helper()

	fakeBT := hal.NewFakeBluetoothInterface(nil)
	hal.InitializeBluetoothInterfaceForTesting(fakeBT)
	t.Cleanup(hal.CleanUpBluetoothInterface)
	hal.InitializeGattInterfaceForTesting(hal.NewFakeGattInterface(nil, nil))
	t.Cleanup(hal.CleanUpGattInterface)

	adapter := service.NewAdapter()
	t.Cleanup(adapter.Close)

	server := NewServer(adapter)
	socketPath := filepath.Join(t.TempDir(), "bt.sock")
	if err := server.Start(socketPath); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(server.Stop)

	client, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, fakeBT
}

func TestServerAdapterRoundTrip(t *testing.T) {
	client, fakeBT := startTestServer(t)

	resp, err := client.Do(CommandGetState)
	if err != nil {
		t.Fatalf("get-state: %v", err)
	}
	if !resp.OK || resp.Value != "off" {
		t.Fatalf("get-state = %+v, want off", resp)
	}

	resp, err = client.Do(CommandEnable)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !resp.OK {
		t.Fatalf("enable rejected: %s", resp.Error)
	}

	resp, _ = client.Do(CommandGetState)
	if resp.Value != "turning-on" {
		t.Errorf("get-state = %q after enable, want turning-on", resp.Value)
	}

	fakeBT.NotifyAdapterStateChanged(hal.AdapterStateOn)
	resp, _ = client.Do(CommandIsEnabled)
	if resp.Value != "true" {
		t.Errorf("is-enabled = %q, want true", resp.Value)
	}

	// Enabling an already-on adapter surfaces as a protocol-level error.
	resp, err = client.Do(CommandEnable)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("second enable = %+v, want error", resp)
	}
}

func TestServerProperties(t *testing.T) {
	client, fakeBT := startTestServer(t)

	fakeBT.NotifyAdapterPropertiesChanged(hal.StatusSuccess, []hal.Property{
		{Type: hal.PropertyBDAddr, Value: []byte{0xAA, 0xBB, 0xCC, 0x00, 0x11, 0x22}},
		{Type: hal.PropertyBDName, Value: []byte("hallway")},
	})

	resp, err := client.Do(CommandGetLocalAddress)
	if err != nil {
		t.Fatalf("get-local-address: %v", err)
	}
	if resp.Value != "AA:BB:CC:00:11:22" {
		t.Errorf("address = %q", resp.Value)
	}

	resp, _ = client.Do(CommandGetLocalName)
	if resp.Value != "hallway" {
		t.Errorf("name = %q, want hallway", resp.Value)
	}
}

func TestServerSetLocalName(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Do(CommandSetLocalName, "den")
	if err != nil {
		t.Fatalf("set-local-name: %v", err)
	}
	if !resp.OK {
		t.Errorf("set-local-name rejected: %s", resp.Error)
	}

	resp, _ = client.Do(CommandSetLocalName)
	if resp.OK || resp.Error == "" {
		t.Error("set-local-name without an argument accepted")
	}
}

func TestServerUnknownCommand(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Do("frobnicate")
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("unknown command = %+v, want error", resp)
	}
}
