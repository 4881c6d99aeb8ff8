package hal

import (
	"sync"

	"github.com/google/uuid"
)

// TestClientHandler scripts the synchronous half of the client-role HAL for
// tests. Nil funcs default to StatusSuccess.
type TestClientHandler struct {
	RegisterClient   func(appUUID uuid.UUID) Status
	UnregisterClient func(clientIF int) Status

	MultiAdvEnable func(clientIF, minIntervalUnit, maxIntervalUnit, advEventType,
		channelMap, txPowerLevel, timeoutSec int) Status
	MultiAdvSetInstData func(clientIF int, setScanRsp, includeName, inclTxPower bool,
		appearance int, manufacturerData, serviceData, serviceUUID []byte) Status
	MultiAdvDisable func(clientIF int) Status
}

// TestServerHandler scripts the synchronous half of the server-role HAL.
type TestServerHandler struct {
	RegisterServer   func(appUUID uuid.UUID) Status
	UnregisterServer func(serverIF int) Status
}

// FakeGattInterface is a GattInterface test double. Install it with
// InitializeGattInterfaceForTesting and drive observer fan-out through the
// Notify methods, which emulate callbacks arriving on a stack thread:
// dispatch happens under the fake's lock, exactly like the production hub.
type FakeGattInterface struct {
	mu              sync.Mutex
	clientObservers observerList[ClientObserver]
	serverObservers observerList[ServerObserver]
	clientHandler   *TestClientHandler
	serverHandler   *TestServerHandler
}

func NewFakeGattInterface(client *TestClientHandler, server *TestServerHandler) *FakeGattInterface {
	if client == nil {
		client = &TestClientHandler{}
	}
	if server == nil {
		server = &TestServerHandler{}
	}
	return &FakeGattInterface{
		clientHandler: client,
		serverHandler: server,
	}
}

func (f *FakeGattInterface) AddClientObserver(observer ClientObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientObservers.Add(observer)
}

func (f *FakeGattInterface) RemoveClientObserver(observer ClientObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientObservers.Remove(observer)
}

func (f *FakeGattInterface) AddClientObserverUnsafe(observer ClientObserver) {
	f.clientObservers.Add(observer)
}

func (f *FakeGattInterface) RemoveClientObserverUnsafe(observer ClientObserver) {
	f.clientObservers.Remove(observer)
}

func (f *FakeGattInterface) AddServerObserver(observer ServerObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverObservers.Add(observer)
}

func (f *FakeGattInterface) RemoveServerObserver(observer ServerObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverObservers.Remove(observer)
}

func (f *FakeGattInterface) AddServerObserverUnsafe(observer ServerObserver) {
	f.serverObservers.Add(observer)
}

func (f *FakeGattInterface) RemoveServerObserverUnsafe(observer ServerObserver) {
	f.serverObservers.Remove(observer)
}

func (f *FakeGattInterface) ClientHAL() GattClientHAL {
	return fakeClientHAL{f}
}

func (f *FakeGattInterface) ServerHAL() GattServerHAL {
	return fakeServerHAL{f}
}

// NotifyRegisterClientCallback fans a registration completion out to all
// client observers.
func (f *FakeGattInterface) NotifyRegisterClientCallback(status Status, clientIF int, appUUID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.clientObservers.Snapshot() {
		observer.RegisterClientCallback(f, status, clientIF, appUUID)
	}
}

func (f *FakeGattInterface) NotifyMultiAdvEnableCallback(clientIF int, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.clientObservers.Snapshot() {
		observer.MultiAdvEnableCallback(f, clientIF, status)
	}
}

func (f *FakeGattInterface) NotifyMultiAdvUpdateCallback(clientIF int, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.clientObservers.Snapshot() {
		observer.MultiAdvUpdateCallback(f, clientIF, status)
	}
}

func (f *FakeGattInterface) NotifyMultiAdvDataCallback(clientIF int, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.clientObservers.Snapshot() {
		observer.MultiAdvDataCallback(f, clientIF, status)
	}
}

func (f *FakeGattInterface) NotifyMultiAdvDisableCallback(clientIF int, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.clientObservers.Snapshot() {
		observer.MultiAdvDisableCallback(f, clientIF, status)
	}
}

func (f *FakeGattInterface) NotifyRegisterServerCallback(status Status, serverIF int, appUUID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.serverObservers.Snapshot() {
		observer.RegisterServerCallback(f, status, serverIF, appUUID)
	}
}

// ClientObserverCount reports the number of registered client observers.
func (f *FakeGattInterface) ClientObserverCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientObservers.Len()
}

type fakeClientHAL struct {
	f *FakeGattInterface
}

func (h fakeClientHAL) RegisterClient(appUUID uuid.UUID) Status {
	if h.f.clientHandler.RegisterClient == nil {
		return StatusSuccess
	}
	return h.f.clientHandler.RegisterClient(appUUID)
}

func (h fakeClientHAL) UnregisterClient(clientIF int) Status {
	if h.f.clientHandler.UnregisterClient == nil {
		return StatusSuccess
	}
	return h.f.clientHandler.UnregisterClient(clientIF)
}

func (h fakeClientHAL) MultiAdvEnable(clientIF, minIntervalUnit, maxIntervalUnit, advEventType,
	channelMap, txPowerLevel, timeoutSec int) Status {
	if h.f.clientHandler.MultiAdvEnable == nil {
		return StatusSuccess
	}
	return h.f.clientHandler.MultiAdvEnable(clientIF, minIntervalUnit, maxIntervalUnit,
		advEventType, channelMap, txPowerLevel, timeoutSec)
}

func (h fakeClientHAL) MultiAdvSetInstData(clientIF int, setScanRsp, includeName, inclTxPower bool,
	appearance int, manufacturerData, serviceData, serviceUUID []byte) Status {
	if h.f.clientHandler.MultiAdvSetInstData == nil {
		return StatusSuccess
	}
	return h.f.clientHandler.MultiAdvSetInstData(clientIF, setScanRsp, includeName, inclTxPower,
		appearance, manufacturerData, serviceData, serviceUUID)
}

func (h fakeClientHAL) MultiAdvDisable(clientIF int) Status {
	if h.f.clientHandler.MultiAdvDisable == nil {
		return StatusSuccess
	}
	return h.f.clientHandler.MultiAdvDisable(clientIF)
}

type fakeServerHAL struct {
	f *FakeGattInterface
}

func (h fakeServerHAL) RegisterServer(appUUID uuid.UUID) Status {
	if h.f.serverHandler.RegisterServer == nil {
		return StatusSuccess
	}
	return h.f.serverHandler.RegisterServer(appUUID)
}

func (h fakeServerHAL) UnregisterServer(serverIF int) Status {
	if h.f.serverHandler.UnregisterServer == nil {
		return StatusSuccess
	}
	return h.f.serverHandler.UnregisterServer(serverIF)
}
