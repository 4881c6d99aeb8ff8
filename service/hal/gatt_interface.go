package hal

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/3EleVen/android-system-bt/logger"
)

// GattInterface is the process-wide hub for GATT HAL traffic. Observers are
// partitioned by role: client-role observers receive registration and
// multi-advertising completions, server-role observers receive server
// registration events.
//
// The Unsafe add/remove variants assume the caller already holds the hub
// lock. They exist so that an observer can register or unregister another
// observer from within its own callback invocation (the hub lock is held for
// the full fan-out and is not reentrant).
type GattInterface interface {
	AddClientObserver(observer ClientObserver)
	RemoveClientObserver(observer ClientObserver)
	AddClientObserverUnsafe(observer ClientObserver)
	RemoveClientObserverUnsafe(observer ClientObserver)

	AddServerObserver(observer ServerObserver)
	RemoveServerObserver(observer ServerObserver)
	AddServerObserverUnsafe(observer ServerObserver)
	RemoveServerObserverUnsafe(observer ServerObserver)

	// ClientHAL and ServerHAL return the underlying stack capabilities.
	ClientHAL() GattClientHAL
	ServerHAL() GattServerHAL
}

// ClientObserver receives client-role callbacks. The hub is passed through so
// that observers can issue follow-up HAL calls from within a callback without
// re-entering the singleton accessor. Embed BaseClientObserver for no-op
// defaults.
type ClientObserver interface {
	RegisterClientCallback(gatt GattInterface, status Status, clientIF int, appUUID uuid.UUID)
	MultiAdvEnableCallback(gatt GattInterface, clientIF int, status Status)
	MultiAdvUpdateCallback(gatt GattInterface, clientIF int, status Status)
	MultiAdvDataCallback(gatt GattInterface, clientIF int, status Status)
	MultiAdvDisableCallback(gatt GattInterface, clientIF int, status Status)
}

// BaseClientObserver provides default no-op implementations so that the
// hooks themselves are optional.
type BaseClientObserver struct{}

func (BaseClientObserver) RegisterClientCallback(GattInterface, Status, int, uuid.UUID) {}
func (BaseClientObserver) MultiAdvEnableCallback(GattInterface, int, Status)            {}
func (BaseClientObserver) MultiAdvUpdateCallback(GattInterface, int, Status)            {}
func (BaseClientObserver) MultiAdvDataCallback(GattInterface, int, Status)              {}
func (BaseClientObserver) MultiAdvDisableCallback(GattInterface, int, Status)           {}

// ServerObserver receives server-role callbacks.
type ServerObserver interface {
	RegisterServerCallback(gatt GattInterface, status Status, serverIF int, appUUID uuid.UUID)
}

// BaseServerObserver provides a default no-op implementation.
type BaseServerObserver struct{}

func (BaseServerObserver) RegisterServerCallback(GattInterface, Status, int, uuid.UUID) {}

var (
	// The global GattInterface instance, guarded by gattInstanceLock. The
	// lock is shared by observer mutation and callback fan-out so that
	// removing an observer waits out any dispatch that might reference it.
	gattInstance     *gattInterfaceImpl
	gattTestInstance GattInterface
	gattInstanceLock sync.Mutex
)

type gattInterfaceImpl struct {
	clientObservers observerList[ClientObserver]
	serverObservers observerList[ServerObserver]
	hal             GattHAL
}

func (g *gattInterfaceImpl) AddClientObserver(observer ClientObserver) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g.AddClientObserverUnsafe(observer)
}

func (g *gattInterfaceImpl) RemoveClientObserver(observer ClientObserver) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g.RemoveClientObserverUnsafe(observer)
}

func (g *gattInterfaceImpl) AddClientObserverUnsafe(observer ClientObserver) {
	g.clientObservers.Add(observer)
}

func (g *gattInterfaceImpl) RemoveClientObserverUnsafe(observer ClientObserver) {
	g.clientObservers.Remove(observer)
}

func (g *gattInterfaceImpl) AddServerObserver(observer ServerObserver) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g.AddServerObserverUnsafe(observer)
}

func (g *gattInterfaceImpl) RemoveServerObserver(observer ServerObserver) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g.RemoveServerObserverUnsafe(observer)
}

func (g *gattInterfaceImpl) AddServerObserverUnsafe(observer ServerObserver) {
	g.serverObservers.Add(observer)
}

func (g *gattInterfaceImpl) RemoveServerObserverUnsafe(observer ServerObserver) {
	g.serverObservers.Remove(observer)
}

func (g *gattInterfaceImpl) ClientHAL() GattClientHAL {
	return g.hal.Client()
}

func (g *gattInterfaceImpl) ServerHAL() GattServerHAL {
	return g.hal.Server()
}

// gattCallbacks is the sink handed to the stack. Its methods run on stack
// threads and hold the hub lock across the full observer fan-out.
type gattCallbacks struct{}

// liveGattInstance must be called with gattInstanceLock held. It returns nil
// when the singleton has been torn down, which callers treat as "drop the
// event".
func liveGattInstance(callback string) *gattInterfaceImpl {
	if gattInstance == nil {
		logger.Warn("hal", "%s received after GattInterface was destroyed", callback)
		return nil
	}
	return gattInstance
}

func (gattCallbacks) RegisterClientCallback(status Status, clientIF int, appUUID uuid.UUID) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g := liveGattInstance("RegisterClientCallback")
	if g == nil {
		return
	}
	logger.Trace("hal", "RegisterClientCallback - status: %s, client_if: %d", status, clientIF)
	for _, observer := range g.clientObservers.Snapshot() {
		observer.RegisterClientCallback(g, status, clientIF, appUUID)
	}
}

func (gattCallbacks) MultiAdvEnableCallback(clientIF int, status Status) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g := liveGattInstance("MultiAdvEnableCallback")
	if g == nil {
		return
	}
	logger.Trace("hal", "MultiAdvEnableCallback - status: %s, client_if: %d", status, clientIF)
	for _, observer := range g.clientObservers.Snapshot() {
		observer.MultiAdvEnableCallback(g, clientIF, status)
	}
}

func (gattCallbacks) MultiAdvUpdateCallback(clientIF int, status Status) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g := liveGattInstance("MultiAdvUpdateCallback")
	if g == nil {
		return
	}
	logger.Trace("hal", "MultiAdvUpdateCallback - status: %s, client_if: %d", status, clientIF)
	for _, observer := range g.clientObservers.Snapshot() {
		observer.MultiAdvUpdateCallback(g, clientIF, status)
	}
}

func (gattCallbacks) MultiAdvDataCallback(clientIF int, status Status) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g := liveGattInstance("MultiAdvDataCallback")
	if g == nil {
		return
	}
	logger.Trace("hal", "MultiAdvDataCallback - status: %s, client_if: %d", status, clientIF)
	for _, observer := range g.clientObservers.Snapshot() {
		observer.MultiAdvDataCallback(g, clientIF, status)
	}
}

func (gattCallbacks) MultiAdvDisableCallback(clientIF int, status Status) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g := liveGattInstance("MultiAdvDisableCallback")
	if g == nil {
		return
	}
	logger.Trace("hal", "MultiAdvDisableCallback - status: %s, client_if: %d", status, clientIF)
	for _, observer := range g.clientObservers.Snapshot() {
		observer.MultiAdvDisableCallback(g, clientIF, status)
	}
}

func (gattCallbacks) RegisterServerCallback(status Status, serverIF int, appUUID uuid.UUID) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	g := liveGattInstance("RegisterServerCallback")
	if g == nil {
		return
	}
	logger.Trace("hal", "RegisterServerCallback - status: %s, server_if: %d", status, serverIF)
	for _, observer := range g.serverObservers.Snapshot() {
		observer.RegisterServerCallback(g, status, serverIF, appUUID)
	}
}

// InitializeGattInterface creates the global hub over the given GATT
// capability and installs the hub's callback sinks on the stack. It fails if
// the stack rejects the callback table.
func InitializeGattInterface(gattHAL GattHAL) error {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	if gattInstance != nil || gattTestInstance != nil {
		panic("hal: GattInterface already initialized")
	}

	if status := gattHAL.SetCallbacks(gattCallbacks{}, gattCallbacks{}); status != StatusSuccess {
		return fmt.Errorf("hal: failed to install GATT callbacks: %s", status)
	}
	gattInstance = &gattInterfaceImpl{hal: gattHAL}
	return nil
}

// GetGattInterface returns the global hub. Calling it before initialization
// is a programming error and panics.
func GetGattInterface() GattInterface {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	if gattTestInstance != nil {
		return gattTestInstance
	}
	if gattInstance == nil {
		panic("hal: GetGattInterface called before initialization")
	}
	return gattInstance
}

// IsGattInterfaceInitialized reports whether the global hub exists.
func IsGattInterfaceInitialized() bool {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	return gattInstance != nil || gattTestInstance != nil
}

// CleanUpGattInterface destroys the global hub. Any stack callback still in
// flight on another thread will observe the absence of the singleton and
// no-op.
func CleanUpGattInterface() {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	gattInstance = nil
	gattTestInstance = nil
}

// InitializeGattInterfaceForTesting installs a test double (typically a
// *FakeGattInterface) as the global hub.
func InitializeGattInterfaceForTesting(testInstance GattInterface) {
	gattInstanceLock.Lock()
	defer gattInstanceLock.Unlock()
	if gattInstance != nil || gattTestInstance != nil {
		panic("hal: GattInterface already initialized")
	}
	if testInstance == nil {
		panic("hal: nil test instance")
	}
	gattTestInstance = testInstance
}
