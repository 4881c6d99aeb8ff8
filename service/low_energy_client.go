package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/3EleVen/android-system-bt/logger"
	"github.com/3EleVen/android-system-bt/service/hal"
)

// BLEStatus is the result reported to application callbacks for asynchronous
// BLE operations.
type BLEStatus int

const (
	BLEStatusSuccess BLEStatus = iota
	BLEStatusFailure
)

func (s BLEStatus) String() string {
	if s == BLEStatusSuccess {
		return "success"
	}
	return "failure"
}

// StatusCallback reports the result of an asynchronous per-client operation.
type StatusCallback func(status BLEStatus)

// ClientCallback reports the result of a RegisterClient call. On success the
// caller takes ownership of the client and must Close it when done.
type ClientCallback func(status BLEStatus, appUUID uuid.UUID, client *LowEnergyClient)

// LowEnergyClient is an application's handle for BLE advertising operations.
// Instances are obtained through LowEnergyClientFactory.RegisterClient; each
// one is a hub observer filtering callbacks addressed to its own HAL-assigned
// client handle.
//
// The advertising lifecycle is a four-state machine: Idle, Starting (enable
// accepted, payload pushes outstanding), Advertising, Stopping. Start and
// stop calls overlapping a pending transition are rejected synchronously
// without touching the HAL.
type LowEnergyClient struct {
	appIdentifier uuid.UUID
	clientIF      int

	// Guards every field below. Held across the HAL calls made by this
	// client so that a callback racing in on a stack thread observes a
	// consistent snapshot of the pending operation.
	mu sync.Mutex

	advData            AdvertiseData
	scanResponse       AdvertiseData
	advDataNeedsUpdate bool
	scanRspNeedsUpdate bool

	settings AdvertiseSettings

	// True while a MultiAdvSetInstData call is in flight. The stack accepts
	// only one payload push per client at a time, so mutators arriving while
	// this is set only mark the needs-update flags; the in-flight
	// completion handler re-checks the flags and coalesces the burst into a
	// single follow-up push.
	settingAdvData bool

	advStarted    bool
	startCallback StatusCallback
	stopCallback  StatusCallback

	lastTransition time.Time
}

func newLowEnergyClient(appUUID uuid.UUID, clientIF int) *LowEnergyClient {
	return &LowEnergyClient{
		appIdentifier:  appUUID,
		clientIF:       clientIF,
		lastTransition: time.Now(),
	}
}

// AppIdentifier returns the application-chosen UUID used at registration.
func (c *LowEnergyClient) AppIdentifier() uuid.UUID {
	return c.appIdentifier
}

// ClientIF returns the handle assigned by the stack. All per-client HAL
// calls are addressed with it.
func (c *LowEnergyClient) ClientIF() int {
	return c.clientIF
}

// Settings returns the advertising settings from the most recent accepted
// StartAdvertising call.
func (c *LowEnergyClient) Settings() AdvertiseSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// IsAdvertisingStarted reports whether advertising is currently enabled.
func (c *LowEnergyClient) IsAdvertisingStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advStarted
}

// IsStartingAdvertising reports whether a start operation is in flight.
func (c *LowEnergyClient) IsStartingAdvertising() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.advStarted && c.startCallback != nil
}

// IsStoppingAdvertising reports whether a stop operation is in flight.
func (c *LowEnergyClient) IsStoppingAdvertising() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advStarted && c.stopCallback != nil
}

// TimeSinceLastStateChange reports how long the state machine has sat in its
// current state. The HAL offers no cancellation or timeout for in-flight
// operations, so this is diagnostic only.
func (c *LowEnergyClient) TimeSinceLastStateChange() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastTransition)
}

// StartAdvertising begins advertising with the given settings and payloads,
// reporting the eventual result through callback. It returns false, without
// scheduling any callback, if a start or stop is already pending, if
// advertising is already enabled, if either payload fails structural
// validation, or if the stack rejects the enable call outright.
func (c *LowEnergyClient) StartAdvertising(settings AdvertiseSettings,
	advData, scanResponse AdvertiseData, callback StatusCallback) bool {
	gatt := hal.GetGattInterface()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.advStarted {
		logger.Warn(c.logPrefix(), "Already advertising")
		return false
	}
	if c.startCallback != nil || c.stopCallback != nil {
		logger.Warn(c.logPrefix(), "An advertising operation is already pending")
		return false
	}
	if !advData.IsValid() {
		logger.Error(c.logPrefix(), "Invalid advertising data")
		return false
	}
	if !scanResponse.IsValid() {
		logger.Error(c.logPrefix(), "Invalid scan response data")
		return false
	}

	c.advData = advData
	c.scanResponse = scanResponse
	// The advertising payload is always pushed once the enable completes,
	// even when empty. The scan response only needs a push when it carries
	// something; an empty one is simply never sent on the air.
	c.advDataNeedsUpdate = true
	c.scanRspNeedsUpdate = scanResponse.hasContent()
	c.settings = settings

	status := gatt.ClientHAL().MultiAdvEnable(
		c.clientIF,
		settings.intervalUnit(),
		settings.intervalUnit()+advIntervalDeltaUnit,
		settings.eventType(scanResponse),
		advChannelMapAll,
		int(settings.TxPowerLevel),
		int(settings.Timeout/time.Second))
	if status != hal.StatusSuccess {
		logger.Error(c.logPrefix(), "Failed to enable multi-advertising: %s", status)
		return false
	}

	c.startCallback = callback
	c.lastTransition = time.Now()
	logger.Debug(c.logPrefix(), "Advertising start pending")
	return true
}

// StopAdvertising disables advertising, reporting the result through
// callback. It returns false if advertising is not enabled, a transition is
// already pending, or the stack rejects the disable call.
func (c *LowEnergyClient) StopAdvertising(callback StatusCallback) bool {
	gatt := hal.GetGattInterface()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.advStarted {
		logger.Warn(c.logPrefix(), "Not advertising")
		return false
	}
	if c.startCallback != nil || c.stopCallback != nil {
		logger.Warn(c.logPrefix(), "An advertising operation is already pending")
		return false
	}

	if status := gatt.ClientHAL().MultiAdvDisable(c.clientIF); status != hal.StatusSuccess {
		logger.Error(c.logPrefix(), "Failed to disable multi-advertising: %s", status)
		return false
	}

	c.stopCallback = callback
	c.lastTransition = time.Now()
	logger.Debug(c.logPrefix(), "Advertising stop pending")
	return true
}

// SetAdvertiseData replaces the advertising payload. While advertising, the
// new payload is pushed to the stack, coalescing bursts of calls into a
// bounded number of HAL updates; while idle it simply becomes the payload
// used by the next StartAdvertising-free push. Returns false if the payload
// fails validation.
func (c *LowEnergyClient) SetAdvertiseData(data AdvertiseData) bool {
	if !data.IsValid() {
		logger.Error(c.logPrefix(), "Invalid advertising data")
		return false
	}

	gatt := hal.GetGattInterface()

	c.mu.Lock()
	defer c.mu.Unlock()

	if data.Equal(c.advData) {
		return true
	}
	c.advData = data
	c.advDataNeedsUpdate = true

	if c.advStarted {
		c.handleDeferredAdvertiseData(gatt)
	}
	return true
}

// SetScanResponse replaces the scan response payload with the same deferral
// semantics as SetAdvertiseData.
func (c *LowEnergyClient) SetScanResponse(data AdvertiseData) bool {
	if !data.IsValid() {
		logger.Error(c.logPrefix(), "Invalid scan response data")
		return false
	}

	gatt := hal.GetGattInterface()

	c.mu.Lock()
	defer c.mu.Unlock()

	if data.Equal(c.scanResponse) {
		return true
	}
	c.scanResponse = data
	c.scanRspNeedsUpdate = true

	if c.advStarted {
		c.handleDeferredAdvertiseData(gatt)
	}
	return true
}

// Close unregisters the client from the dispatch hub and the stack. Removal
// from the hub takes the hub lock, so it waits out any in-flight callback
// dispatch that might still reference this client.
func (c *LowEnergyClient) Close() {
	gatt := hal.GetGattInterface()
	gatt.RemoveClientObserver(c)

	// Best-effort: make sure the controller is no longer advertising on our
	// behalf before the handle goes away.
	gatt.ClientHAL().MultiAdvDisable(c.clientIF)
	gatt.ClientHAL().UnregisterClient(c.clientIF)
}

// MultiAdvEnableCallback handles the completion of a MultiAdvEnable call.
// Success does not yet settle the start operation: any payload marked for
// update must be pushed first.
func (c *LowEnergyClient) MultiAdvEnableCallback(gatt hal.GattInterface, clientIF int, status hal.Status) {
	if clientIF != c.clientIF {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if status != hal.StatusSuccess {
		logger.Error(c.logPrefix(), "Failed to enable advertising: %s", status)
		c.invokeAndClearStartCallback(BLEStatusFailure)
		return
	}

	c.handleDeferredAdvertiseData(gatt)
}

// MultiAdvDataCallback handles the completion of a payload push. On success
// it re-checks the needs-update flags (a mutator may have marked a payload
// while the push was in flight) and either pushes the next payload or
// settles a pending start.
func (c *LowEnergyClient) MultiAdvDataCallback(gatt hal.GattInterface, clientIF int, status hal.Status) {
	if clientIF != c.clientIF {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.settingAdvData = false

	if status != hal.StatusSuccess {
		logger.Error(c.logPrefix(), "Failed to set advertising data: %s", status)
		if !c.advStarted && c.startCallback != nil {
			c.invokeAndClearStartCallback(BLEStatusFailure)
			// Undo the enable that already went through. Fire and forget;
			// the disable's own completion settles nothing.
			gatt.ClientHAL().MultiAdvDisable(c.clientIF)
		}
		return
	}

	c.handleDeferredAdvertiseData(gatt)
}

// MultiAdvDisableCallback handles the completion of a MultiAdvDisable call.
// Disable always lands in Idle: the stack exposes no recovery path for a
// failed disable, so the client is logically stopped either way and the
// HAL-reported status is passed through to the caller.
func (c *LowEnergyClient) MultiAdvDisableCallback(gatt hal.GattInterface, clientIF int, status hal.Status) {
	if clientIF != c.clientIF {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCallback == nil {
		// Completion of a fire-and-forget cleanup disable.
		logger.Trace(c.logPrefix(), "Disable completed with no stop pending: %s", status)
		return
	}

	if status == hal.StatusSuccess {
		logger.Info(c.logPrefix(), "📡 Stopped advertising")
	} else {
		logger.Error(c.logPrefix(), "Advertising disable reported: %s", status)
	}

	c.advStarted = false
	if status == hal.StatusSuccess {
		c.invokeAndClearStopCallback(BLEStatusSuccess)
	} else {
		c.invokeAndClearStopCallback(BLEStatusFailure)
	}
}

// RegisterClientCallback and the update hook are part of the observer
// contract but carry nothing for an already-registered client.
func (c *LowEnergyClient) RegisterClientCallback(hal.GattInterface, hal.Status, int, uuid.UUID) {}
func (c *LowEnergyClient) MultiAdvUpdateCallback(hal.GattInterface, int, hal.Status)           {}

// handleDeferredAdvertiseData pushes whichever payload is marked for update,
// one at a time (the stack accepts a single in-flight push per client). When
// nothing is left to push and a start is pending, the start settles with
// success. Must be called with c.mu held.
func (c *LowEnergyClient) handleDeferredAdvertiseData(gatt hal.GattInterface) {
	if c.settingAdvData {
		return
	}

	if c.advDataNeedsUpdate {
		if status := c.setAdvertiseData(gatt, c.advData, false); status != hal.StatusSuccess {
			logger.Error(c.logPrefix(), "Failed to set advertising data: %s", status)
			c.abortPendingStart(gatt)
			return
		}
		c.settingAdvData = true
		c.advDataNeedsUpdate = false
		return
	}

	if c.scanRspNeedsUpdate {
		if status := c.setAdvertiseData(gatt, c.scanResponse, true); status != hal.StatusSuccess {
			logger.Error(c.logPrefix(), "Failed to set scan response data: %s", status)
			c.abortPendingStart(gatt)
			return
		}
		c.settingAdvData = true
		c.scanRspNeedsUpdate = false
		return
	}

	if !c.advStarted && c.startCallback != nil {
		c.advStarted = true
		logger.Info(c.logPrefix(), "📡 Started advertising")
		c.invokeAndClearStartCallback(BLEStatusSuccess)
	}
}

// setAdvertiseData issues a single instance-data push. Must be called with
// c.mu held.
func (c *LowEnergyClient) setAdvertiseData(gatt hal.GattInterface, data AdvertiseData, setScanRsp bool) hal.Status {
	manufacturerData, serviceData, serviceUUID := splitAdvertiseFields(data)
	return gatt.ClientHAL().MultiAdvSetInstData(
		c.clientIF,
		setScanRsp,
		data.IncludeDeviceName,
		data.IncludeTxPower,
		0, // appearance
		manufacturerData,
		serviceData,
		serviceUUID)
}

// abortPendingStart fails a pending start and fires a best-effort disable to
// undo the enable that already succeeded. Must be called with c.mu held.
func (c *LowEnergyClient) abortPendingStart(gatt hal.GattInterface) {
	if c.advStarted || c.startCallback == nil {
		return
	}
	c.invokeAndClearStartCallback(BLEStatusFailure)
	gatt.ClientHAL().MultiAdvDisable(c.clientIF)
}

// invokeAndClearStartCallback must be called with c.mu held.
func (c *LowEnergyClient) invokeAndClearStartCallback(status BLEStatus) {
	if c.startCallback == nil {
		return
	}
	callback := c.startCallback
	c.startCallback = nil
	c.lastTransition = time.Now()
	callback(status)
}

// invokeAndClearStopCallback must be called with c.mu held.
func (c *LowEnergyClient) invokeAndClearStopCallback(status BLEStatus) {
	if c.stopCallback == nil {
		return
	}
	callback := c.stopCallback
	c.stopCallback = nil
	c.lastTransition = time.Now()
	callback(status)
}

func (c *LowEnergyClient) logPrefix() string {
	return "ble " + c.appIdentifier.String()[:8]
}

// splitAdvertiseFields pulls the payload fields the stack's instance-data
// call takes individually out of the raw TLV sequence. Fields beyond these
// are left for the stack to judge.
func splitAdvertiseFields(d AdvertiseData) (manufacturerData, serviceData, serviceUUID []byte) {
	raw := d.Data()
	for i := 0; i < len(raw); {
		fieldLen := int(raw[i])
		if fieldLen == 0 || i+fieldLen >= len(raw) {
			break
		}
		fieldType := raw[i+1]
		value := raw[i+2 : i+1+fieldLen]
		switch fieldType {
		case adTypeManufacturerData:
			manufacturerData = value
		case adTypeServiceData16:
			serviceData = value
		case adTypeComplete16BitUUIDs, adTypeComplete128BitUUIDs:
			serviceUUID = value
		}
		i += fieldLen + 1
	}
	return manufacturerData, serviceData, serviceUUID
}

// LowEnergyClientFactory correlates RegisterClient calls with their
// asynchronous completions and materializes LowEnergyClient instances. It is
// a hub observer from construction until Close.
type LowEnergyClientFactory struct {
	hal.BaseClientObserver

	// Guards pendingCalls. Held only around map operations, never across a
	// HAL call.
	mu           sync.Mutex
	pendingCalls map[uuid.UUID]ClientCallback
}

// NewLowEnergyClientFactory builds a factory and registers it on the GATT
// dispatch hub.
func NewLowEnergyClientFactory() *LowEnergyClientFactory {
	f := &LowEnergyClientFactory{
		pendingCalls: make(map[uuid.UUID]ClientCallback),
	}
	hal.GetGattInterface().AddClientObserver(f)
	return f
}

// Close removes the factory from the dispatch hub. Pending registrations are
// abandoned; their callbacks will never fire.
func (f *LowEnergyClientFactory) Close() {
	hal.GetGattInterface().RemoveClientObserver(f)
}

// RegisterClient asks the stack to register an application with the given
// unique identifier. Returns false, and never invokes callback, if a
// registration for the identifier is already pending or the stack rejects
// the call. On success the callback fires exactly once, from the stack's
// completion, carrying the new client on success.
//
// The stack guarantees eventual completion of every accepted call; an entry
// whose completion never arrives would be stranded here. That is an accepted
// external assumption, not something this registry times out on its own.
func (f *LowEnergyClientFactory) RegisterClient(appUUID uuid.UUID, callback ClientCallback) bool {
	// Reserve the identifier first so a concurrent duplicate is rejected
	// without a second HAL call.
	f.mu.Lock()
	if _, pending := f.pendingCalls[appUUID]; pending {
		f.mu.Unlock()
		logger.Warn("ble", "Registration pending for app: %s", appUUID)
		return false
	}
	f.pendingCalls[appUUID] = callback
	f.mu.Unlock()

	gatt := hal.GetGattInterface()
	if status := gatt.ClientHAL().RegisterClient(appUUID); status != hal.StatusSuccess {
		logger.Error("ble", "Failed to register client: %s", status)
		f.mu.Lock()
		delete(f.pendingCalls, appUUID)
		f.mu.Unlock()
		return false
	}
	return true
}

// RegisterClientCallback consumes the pending entry matching the returned
// UUID, if any. Completions for identifiers this factory never issued are
// logged and dropped; they belong to another registry or to a teardown race.
func (f *LowEnergyClientFactory) RegisterClientCallback(gatt hal.GattInterface,
	status hal.Status, clientIF int, appUUID uuid.UUID) {
	f.mu.Lock()
	callback, ok := f.pendingCalls[appUUID]
	if !ok {
		f.mu.Unlock()
		logger.Warn("ble", "Ignoring callback for unknown app: %s", appUUID)
		return
	}
	delete(f.pendingCalls, appUUID)
	f.mu.Unlock()

	if status != hal.StatusSuccess {
		logger.Error("ble", "Failed to register app %s: %s", appUUID, status)
		callback(BLEStatusFailure, appUUID, nil)
		return
	}

	client := newLowEnergyClient(appUUID, clientIF)
	// We are inside hub dispatch: the hub lock is already held, so the
	// client has to be attached through the unsafe variant.
	gatt.AddClientObserverUnsafe(client)
	callback(BLEStatusSuccess, appUUID, client)
}
