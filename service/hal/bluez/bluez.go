//go:build linux

// Package bluez backs the hal interfaces with a real BlueZ stack over D-Bus.
// Calls translate to org.bluez.Adapter1 property writes and
// LEAdvertisingManager1 registrations; completions are delivered to the hal
// callback sinks on goroutines, matching the stack-thread contract.
package bluez

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/google/uuid"

	"github.com/3EleVen/android-system-bt/logger"
	"github.com/3EleVen/android-system-bt/service/hal"
)

const (
	bluezService = "org.bluez"

	adapterInterface      = "org.bluez.Adapter1"
	advManagerInterface   = "org.bluez.LEAdvertisingManager1"
	advertisingInterface  = "org.bluez.LEAdvertisement1"
	propertiesInterface   = "org.freedesktop.DBus.Properties"
	propertiesChangedName = "PropertiesChanged"

	// PropertiesChanged signal body indices.
	signalBodyInterface  = 0
	signalBodyDictionary = 1
)

const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// HAL drives one local controller through BlueZ. The hal.AdapterHAL and
// hal.GattHAL surfaces are exposed through Adapter and Gatt.
type HAL struct {
	bus     *dbus.Conn
	adapter dbus.BusObject

	adapterCallbacks hal.AdapterCallbacks
	clientCallbacks  hal.GattClientCallbacks
	serverCallbacks  hal.GattServerCallbacks

	mu      sync.Mutex
	nextIF  int
	clients map[int]*advertisementInstance
	servers map[int]struct{}

	sigCh chan *dbus.Signal
}

// advertisementInstance is the per-client advertising object exported to
// BlueZ.
type advertisementInstance struct {
	path       dbus.ObjectPath
	properties *prop.Properties
	registered bool
}

// Open connects to the system bus and binds hci<adapterID>. It fails if the
// adapter object does not exist.
func Open(adapterID int) (*HAL, error) {
	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	adapterPath := dbus.ObjectPath(fmt.Sprintf("/org/bluez/hci%d", adapterID))
	adapter := bus.Object(bluezService, adapterPath)

	if _, err := adapter.GetProperty(adapterInterface + ".Address"); err != nil {
		if dbusErr, ok := err.(dbus.Error); ok && dbusErr.Name == "org.freedesktop.DBus.Error.UnknownObject" {
			return nil, fmt.Errorf("adapter hci%d does not exist", adapterID)
		}
		return nil, fmt.Errorf("failed to probe adapter hci%d: %w", adapterID, err)
	}

	logger.Info("bluez", "Bound adapter at %s", adapterPath)
	return &HAL{
		bus:     bus,
		adapter: adapter,
		nextIF:  1,
		clients: make(map[int]*advertisementInstance),
		servers: make(map[int]struct{}),
	}, nil
}

// Close tears down the signal subscription and the bus connection.
func (h *HAL) Close() error {
	if h.sigCh != nil {
		h.bus.RemoveSignal(h.sigCh)
		close(h.sigCh)
	}
	return h.bus.Close()
}

// Adapter returns the adapter-level HAL surface.
func (h *HAL) Adapter() hal.AdapterHAL {
	return adapterSurface{h}
}

// Gatt returns the GATT-level HAL surface.
func (h *HAL) Gatt() hal.GattHAL {
	return gattSurface{h}
}

type adapterSurface struct {
	h *HAL
}

// SetCallbacks installs the adapter callback sink and subscribes to
// Powered/Alias changes on the adapter.
func (a adapterSurface) SetCallbacks(cb hal.AdapterCallbacks) hal.Status {
	h := a.h
	h.adapterCallbacks = cb

	err := h.bus.AddMatchSignal(
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember(propertiesChangedName),
		dbus.WithMatchObjectPath(h.adapter.Path()),
	)
	if err != nil {
		logger.Error("bluez", "Failed to subscribe to adapter signals: %v", err)
		return hal.StatusFail
	}

	h.sigCh = make(chan *dbus.Signal, 16)
	h.bus.Signal(h.sigCh)
	go h.handleSignals()
	return hal.StatusSuccess
}

// Enable powers the adapter on. The state-changed callback follows from the
// Powered property signal once BlueZ has actually flipped the radio.
func (a adapterSurface) Enable() hal.Status {
	return a.h.setPowered(true)
}

// Disable powers the adapter off.
func (a adapterSurface) Disable() hal.Status {
	return a.h.setPowered(false)
}

// GetAdapterProperties reads the address, alias, and advertising instance
// count and reports them through the properties callback.
func (a adapterSurface) GetAdapterProperties() hal.Status {
	h := a.h
	if h.adapterCallbacks == nil {
		return hal.StatusNotReady
	}

	go func() {
		var props []hal.Property

		if v, err := h.adapter.GetProperty(adapterInterface + ".Address"); err == nil {
			var addr string
			v.Store(&addr)
			if raw, err := parseAddress(addr); err == nil {
				props = append(props, hal.Property{Type: hal.PropertyBDAddr, Value: raw})
			}
		}
		if v, err := h.adapter.GetProperty(adapterInterface + ".Alias"); err == nil {
			var alias string
			v.Store(&alias)
			props = append(props, hal.Property{Type: hal.PropertyBDName, Value: []byte(alias)})
		}
		if v, err := h.adapter.GetProperty(advManagerInterface + ".SupportedInstances"); err == nil {
			var instances byte
			v.Store(&instances)
			props = append(props, hal.Property{Type: hal.PropertyLocalLeFeatures, Value: []byte{instances}})
		}

		if len(props) == 0 {
			h.adapterCallbacks.AdapterPropertiesCallback(hal.StatusFail, nil)
			return
		}
		h.adapterCallbacks.AdapterPropertiesCallback(hal.StatusSuccess, props)
	}()
	return hal.StatusSuccess
}

// SetAdapterProperty writes one adapter property. Only the name is writable
// through BlueZ; the resulting Alias signal feeds the properties callback.
func (a adapterSurface) SetAdapterProperty(p hal.Property) hal.Status {
	h := a.h
	switch p.Type {
	case hal.PropertyBDName:
		err := h.adapter.SetProperty(adapterInterface+".Alias", dbus.MakeVariant(string(p.Value)))
		if err != nil {
			logger.Error("bluez", "Failed to set adapter alias: %v", err)
			return hal.StatusFail
		}
		return hal.StatusSuccess
	default:
		return hal.StatusUnsupported
	}
}

func (h *HAL) setPowered(on bool) hal.Status {
	err := h.adapter.SetProperty(adapterInterface+".Powered", dbus.MakeVariant(on))
	if err != nil {
		logger.Error("bluez", "Failed to set Powered=%t: %v", on, err)
		return hal.StatusFail
	}
	return hal.StatusSuccess
}

func (h *HAL) handleSignals() {
	for sig := range h.sigCh {
		if sig.Name != propertiesInterface+"."+propertiesChangedName {
			continue
		}
		iface, ok := sig.Body[signalBodyInterface].(string)
		if !ok || iface != adapterInterface {
			continue
		}
		changes, ok := sig.Body[signalBodyDictionary].(map[string]dbus.Variant)
		if !ok {
			continue
		}

		if powered, ok := changes["Powered"].Value().(bool); ok {
			state := hal.AdapterStateOff
			if powered {
				state = hal.AdapterStateOn
			}
			h.adapterCallbacks.AdapterStateChangedCallback(state)
		}
		if alias, ok := changes["Alias"].Value().(string); ok {
			h.adapterCallbacks.AdapterPropertiesCallback(hal.StatusSuccess, []hal.Property{
				{Type: hal.PropertyBDName, Value: []byte(alias)},
			})
		}
	}
}

type gattSurface struct {
	h *HAL
}

// SetCallbacks installs the GATT callback sinks.
func (g gattSurface) SetCallbacks(client hal.GattClientCallbacks, server hal.GattServerCallbacks) hal.Status {
	g.h.clientCallbacks = client
	g.h.serverCallbacks = server
	return hal.StatusSuccess
}

// Client returns the client-role HAL surface.
func (g gattSurface) Client() hal.GattClientHAL {
	return clientHAL{g.h}
}

// Server returns the server-role HAL surface.
func (g gattSurface) Server() hal.GattServerHAL {
	return serverHAL{g.h}
}

type clientHAL struct {
	h *HAL
}

// RegisterClient allocates a handle for the application. BlueZ has no
// registration round-trip, so the completion fires immediately from a
// goroutine.
func (c clientHAL) RegisterClient(appUUID uuid.UUID) hal.Status {
	h := c.h
	if h.clientCallbacks == nil {
		return hal.StatusNotReady
	}

	h.mu.Lock()
	clientIF := h.nextIF
	h.nextIF++
	h.clients[clientIF] = &advertisementInstance{
		path: dbus.ObjectPath(fmt.Sprintf("/com/android/bt/advertisement%d", clientIF)),
	}
	h.mu.Unlock()

	go h.clientCallbacks.RegisterClientCallback(hal.StatusSuccess, clientIF, appUUID)
	return hal.StatusSuccess
}

// UnregisterClient drops the handle and any advertisement still registered
// under it. No completion callback is defined for this call.
func (c clientHAL) UnregisterClient(clientIF int) hal.Status {
	h := c.h
	h.mu.Lock()
	inst, ok := h.clients[clientIF]
	delete(h.clients, clientIF)
	h.mu.Unlock()
	if !ok {
		return hal.StatusParamInvalid
	}
	if inst.registered {
		h.adapter.Call(advManagerInterface+".UnregisterAdvertisement", 0, inst.path)
	}
	return hal.StatusSuccess
}

func (c clientHAL) MultiAdvEnable(clientIF, minIntervalUnit, maxIntervalUnit, advEventType,
	channelMap, txPowerLevel, timeoutSec int) hal.Status {
	h := c.h
	h.mu.Lock()
	inst, ok := h.clients[clientIF]
	h.mu.Unlock()
	if !ok {
		return hal.StatusParamInvalid
	}
	if inst.registered {
		return hal.StatusBusy
	}

	advType := "broadcast"
	if advEventType == 0 {
		advType = "peripheral"
	}

	propsSpec := map[string]map[string]*prop.Prop{
		advertisingInterface: {
			"Type":             {Value: advType},
			"Timeout":          {Value: uint16(timeoutSec)},
			"ServiceUUIDs":     {Value: []string{}, Writable: true},
			"ManufacturerData": {Value: map[uint16]any{}, Writable: true},
			"ServiceData":      {Value: map[string]any{}, Writable: true},
			"Includes":         {Value: []string{}, Writable: true},
		},
	}

	props, err := prop.Export(h.bus, inst.path, propsSpec)
	if err != nil {
		logger.Error("bluez", "Failed to export advertisement %s: %v", inst.path, err)
		return hal.StatusFail
	}
	inst.properties = props

	go func() {
		call := h.adapter.Call(advManagerInterface+".RegisterAdvertisement", 0,
			inst.path, map[string]any{})
		if call.Err != nil {
			logger.Error("bluez", "RegisterAdvertisement failed: %v", call.Err)
			h.clientCallbacks.MultiAdvEnableCallback(clientIF, hal.StatusFail)
			return
		}
		h.mu.Lock()
		inst.registered = true
		h.mu.Unlock()
		h.clientCallbacks.MultiAdvEnableCallback(clientIF, hal.StatusSuccess)
	}()
	return hal.StatusSuccess
}

// MultiAdvSetInstData maps the parsed payload fields onto the exported
// advertisement object. BlueZ folds advertising and scan response data into
// one object, so both pushes land on the same properties.
func (c clientHAL) MultiAdvSetInstData(clientIF int, setScanRsp, includeName, inclTxPower bool,
	appearance int, manufacturerData, serviceData, serviceUUID []byte) hal.Status {
	h := c.h
	h.mu.Lock()
	inst, ok := h.clients[clientIF]
	h.mu.Unlock()
	if !ok || inst.properties == nil {
		return hal.StatusParamInvalid
	}

	go func() {
		if len(manufacturerData) >= 2 {
			companyID := uint16(manufacturerData[0]) | uint16(manufacturerData[1])<<8
			inst.properties.SetMust(advertisingInterface, "ManufacturerData",
				map[uint16]any{companyID: manufacturerData[2:]})
		}
		if len(serviceData) >= 2 {
			uuid16 := uint16(serviceData[0]) | uint16(serviceData[1])<<8
			inst.properties.SetMust(advertisingInterface, "ServiceData",
				map[string]any{uuid16String(uuid16): serviceData[2:]})
		}
		if s := serviceUUIDString(serviceUUID); s != "" {
			inst.properties.SetMust(advertisingInterface, "ServiceUUIDs", []string{s})
		}

		var includes []string
		if includeName {
			includes = append(includes, "local-name")
		}
		if inclTxPower {
			includes = append(includes, "tx-power")
		}
		inst.properties.SetMust(advertisingInterface, "Includes", includes)

		h.clientCallbacks.MultiAdvDataCallback(clientIF, hal.StatusSuccess)
	}()
	return hal.StatusSuccess
}

func (c clientHAL) MultiAdvDisable(clientIF int) hal.Status {
	h := c.h
	h.mu.Lock()
	inst, ok := h.clients[clientIF]
	h.mu.Unlock()
	if !ok {
		return hal.StatusParamInvalid
	}

	go func() {
		call := h.adapter.Call(advManagerInterface+".UnregisterAdvertisement", 0, inst.path)
		status := hal.StatusSuccess
		if call.Err != nil {
			if dbusErr, ok := call.Err.(dbus.Error); !ok || dbusErr.Name != "org.bluez.Error.DoesNotExist" {
				logger.Error("bluez", "UnregisterAdvertisement failed: %v", call.Err)
				status = hal.StatusFail
			}
		}
		h.mu.Lock()
		inst.registered = false
		h.mu.Unlock()
		h.clientCallbacks.MultiAdvDisableCallback(clientIF, status)
	}()
	return hal.StatusSuccess
}

type serverHAL struct {
	h *HAL
}

func (s serverHAL) RegisterServer(appUUID uuid.UUID) hal.Status {
	h := s.h
	if h.serverCallbacks == nil {
		return hal.StatusNotReady
	}

	h.mu.Lock()
	serverIF := h.nextIF
	h.nextIF++
	h.servers[serverIF] = struct{}{}
	h.mu.Unlock()

	go h.serverCallbacks.RegisterServerCallback(hal.StatusSuccess, serverIF, appUUID)
	return hal.StatusSuccess
}

func (s serverHAL) UnregisterServer(serverIF int) hal.Status {
	h := s.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.servers[serverIF]; !ok {
		return hal.StatusParamInvalid
	}
	delete(h.servers, serverIF)
	return hal.StatusSuccess
}

// parseAddress converts a colon-hex address string into its 6 raw bytes.
func parseAddress(addr string) ([]byte, error) {
	parts := strings.Split(addr, ":")
	if len(parts) != 6 {
		return nil, fmt.Errorf("malformed address %q", addr)
	}
	raw := make([]byte, 6)
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("malformed address %q: %w", addr, err)
		}
		raw[i] = byte(b)
	}
	return raw, nil
}

// uuid16String expands a 16-bit UUID into its full base-UUID string form.
func uuid16String(u uint16) string {
	return fmt.Sprintf("%08x%s", uint32(u), baseUUIDSuffix)
}

// serviceUUIDString renders a 2-byte or 16-byte service UUID field as the
// string form BlueZ expects. Other lengths are dropped.
func serviceUUIDString(raw []byte) string {
	switch len(raw) {
	case 2:
		return uuid16String(uint16(raw[0]) | uint16(raw[1])<<8)
	case 16:
		return fmt.Sprintf("%x-%x-%x-%x-%x", raw[0:4], raw[4:6], raw[6:8], raw[8:10], raw[10:16])
	default:
		return ""
	}
}
