// Package hal models the boundary to the underlying Bluetooth stack. The
// stack is an opaque capability: every call returns an immediate accept/reject
// status and, when accepted, delivers exactly one completion callback later,
// on a thread the stack owns. The two dispatch hubs in this package
// (BluetoothInterface and GattInterface) receive those callbacks and fan them
// out to registered observers.
package hal

import "github.com/google/uuid"

// Status is the synchronous result code returned by every HAL call.
type Status int

const (
	StatusSuccess Status = iota
	StatusFail
	StatusNotReady
	StatusNoMemory
	StatusBusy
	StatusDone
	StatusUnsupported
	StatusParamInvalid
	StatusUnhandled
	StatusAuthFailure
	StatusRemoteDeviceDown
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	case StatusNotReady:
		return "not ready"
	case StatusNoMemory:
		return "no memory"
	case StatusBusy:
		return "busy"
	case StatusDone:
		return "done"
	case StatusUnsupported:
		return "unsupported"
	case StatusParamInvalid:
		return "parameter invalid"
	case StatusUnhandled:
		return "unhandled"
	case StatusAuthFailure:
		return "auth failure"
	case StatusRemoteDeviceDown:
		return "remote device down"
	default:
		return "unknown"
	}
}

// AdapterState is the steady state reported by the stack's
// adapter-state-changed callback. The HAL contract enumerates exactly these
// two values.
type AdapterState int

const (
	AdapterStateOff AdapterState = iota
	AdapterStateOn
)

func (s AdapterState) String() string {
	switch s {
	case AdapterStateOff:
		return "off"
	case AdapterStateOn:
		return "on"
	default:
		return "unknown"
	}
}

// PropertyType identifies an adapter property delivered by the
// adapter-properties callback.
type PropertyType int

const (
	PropertyBDAddr PropertyType = iota + 1
	PropertyBDName
	PropertyLocalLeFeatures
)

func (t PropertyType) String() string {
	switch t {
	case PropertyBDAddr:
		return "bdaddr"
	case PropertyBDName:
		return "bdname"
	case PropertyLocalLeFeatures:
		return "local le features"
	default:
		return "unknown"
	}
}

// Property is one adapter property value. The encoding of Value depends on
// Type: PropertyBDAddr carries the 6 raw address bytes, PropertyBDName the
// UTF-8 name bytes, PropertyLocalLeFeatures a single byte holding the
// controller's advertising instance count.
type Property struct {
	Type  PropertyType
	Value []byte
}

// AdapterHAL is the adapter-level capability exposed by the stack.
type AdapterHAL interface {
	// SetCallbacks installs the global callback sink. The stack may reject
	// the table, in which case initialization must fail.
	SetCallbacks(cb AdapterCallbacks) Status

	Enable() Status
	Disable() Status
	GetAdapterProperties() Status
	SetAdapterProperty(prop Property) Status
}

// AdapterCallbacks is implemented by the BluetoothInterface hub and invoked
// by the stack on its own threads.
type AdapterCallbacks interface {
	AdapterStateChangedCallback(state AdapterState)
	AdapterPropertiesCallback(status Status, props []Property)
}

// GattHAL is the GATT-level capability exposed by the stack.
type GattHAL interface {
	// SetCallbacks installs the client-role and server-role callback sinks.
	SetCallbacks(client GattClientCallbacks, server GattServerCallbacks) Status

	Client() GattClientHAL
	Server() GattServerHAL
}

// GattClientHAL holds the client-role calls. Each accepted call produces
// exactly one matching callback on the GattClientCallbacks sink.
type GattClientHAL interface {
	RegisterClient(appUUID uuid.UUID) Status
	UnregisterClient(clientIF int) Status

	MultiAdvEnable(clientIF, minIntervalUnit, maxIntervalUnit, advEventType,
		channelMap, txPowerLevel, timeoutSec int) Status
	// MultiAdvSetInstData updates one payload (advertising or scan response)
	// for one client handle. The stack accepts only one in-flight update per
	// client at a time.
	MultiAdvSetInstData(clientIF int, setScanRsp, includeName, inclTxPower bool,
		appearance int, manufacturerData, serviceData, serviceUUID []byte) Status
	MultiAdvDisable(clientIF int) Status
}

// GattServerHAL holds the server-role calls.
type GattServerHAL interface {
	RegisterServer(appUUID uuid.UUID) Status
	UnregisterServer(serverIF int) Status
}

// GattClientCallbacks is implemented by the GattInterface hub.
type GattClientCallbacks interface {
	RegisterClientCallback(status Status, clientIF int, appUUID uuid.UUID)
	MultiAdvEnableCallback(clientIF int, status Status)
	MultiAdvUpdateCallback(clientIF int, status Status)
	MultiAdvDataCallback(clientIF int, status Status)
	MultiAdvDisableCallback(clientIF int, status Status)
}

// GattServerCallbacks is implemented by the GattInterface hub.
type GattServerCallbacks interface {
	RegisterServerCallback(status Status, serverIF int, appUUID uuid.UUID)
}
