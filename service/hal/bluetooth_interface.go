package hal

import (
	"fmt"
	"sync"

	"github.com/3EleVen/android-system-bt/logger"
)

// BluetoothInterface is the process-wide hub for adapter-level HAL traffic.
// It owns the AdapterHAL handle and fans each stack callback out to the
// registered observers while holding the hub lock, so teardown of an observer
// (which also takes the lock) waits out any in-flight dispatch.
type BluetoothInterface interface {
	AddObserver(observer BluetoothObserver)
	RemoveObserver(observer BluetoothObserver)

	// HAL returns the underlying adapter capability.
	HAL() AdapterHAL
}

// BluetoothObserver receives adapter-level callbacks. Embed
// BaseBluetoothObserver to pick up no-op defaults for hooks you don't care
// about.
type BluetoothObserver interface {
	AdapterStateChangedCallback(state AdapterState)
	AdapterPropertiesCallback(status Status, props []Property)
}

// BaseBluetoothObserver provides default no-op implementations so that the
// hooks themselves are optional.
type BaseBluetoothObserver struct{}

func (BaseBluetoothObserver) AdapterStateChangedCallback(AdapterState)     {}
func (BaseBluetoothObserver) AdapterPropertiesCallback(Status, []Property) {}

var (
	// The global BluetoothInterface instance, guarded by btInstanceLock.
	// Callbacks arriving from the stack after CleanUpBluetoothInterface must
	// find nil here and drop the event instead of touching freed state.
	btInstance     *bluetoothInterfaceImpl
	btTestInstance BluetoothInterface
	btInstanceLock sync.Mutex
)

type bluetoothInterfaceImpl struct {
	observers observerList[BluetoothObserver]
	hal       AdapterHAL
}

func (b *bluetoothInterfaceImpl) AddObserver(observer BluetoothObserver) {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	b.observers.Add(observer)
}

func (b *bluetoothInterfaceImpl) RemoveObserver(observer BluetoothObserver) {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	b.observers.Remove(observer)
}

func (b *bluetoothInterfaceImpl) HAL() AdapterHAL {
	return b.hal
}

// btCallbacks is the sink handed to the stack. Its methods run on stack
// threads: they take the hub lock, tolerate a torn-down singleton, and fan
// out to observers in registration order.
type btCallbacks struct{}

func (btCallbacks) AdapterStateChangedCallback(state AdapterState) {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	if btInstance == nil {
		logger.Warn("hal", "Adapter state callback received after interface was destroyed")
		return
	}
	logger.Trace("hal", "Adapter state changed: %s", state)
	for _, observer := range btInstance.observers.Snapshot() {
		observer.AdapterStateChangedCallback(state)
	}
}

func (btCallbacks) AdapterPropertiesCallback(status Status, props []Property) {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	if btInstance == nil {
		logger.Warn("hal", "Adapter properties callback received after interface was destroyed")
		return
	}
	for _, prop := range props {
		if prop.Value == nil {
			// The HAL contract guarantees well-formed callbacks; a nil value
			// means the stack itself is broken.
			panic("hal: adapter property with nil value")
		}
	}
	logger.Trace("hal", "Adapter properties changed - status: %s, count: %d", status, len(props))
	for _, observer := range btInstance.observers.Snapshot() {
		observer.AdapterPropertiesCallback(status, props)
	}
}

// InitializeBluetoothInterface creates the global hub over the given adapter
// capability and installs the hub's callback sink on the stack. It fails if
// the stack rejects the callback table.
func InitializeBluetoothInterface(adapterHAL AdapterHAL) error {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	if btInstance != nil || btTestInstance != nil {
		panic("hal: BluetoothInterface already initialized")
	}

	if status := adapterHAL.SetCallbacks(btCallbacks{}); status != StatusSuccess {
		return fmt.Errorf("hal: failed to install adapter callbacks: %s", status)
	}
	btInstance = &bluetoothInterfaceImpl{hal: adapterHAL}
	return nil
}

// GetBluetoothInterface returns the global hub. Calling it before
// initialization is a programming error and panics.
func GetBluetoothInterface() BluetoothInterface {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	if btTestInstance != nil {
		return btTestInstance
	}
	if btInstance == nil {
		panic("hal: GetBluetoothInterface called before initialization")
	}
	return btInstance
}

// IsBluetoothInterfaceInitialized reports whether the global hub exists.
func IsBluetoothInterfaceInitialized() bool {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	return btInstance != nil || btTestInstance != nil
}

// CleanUpBluetoothInterface destroys the global hub. Any stack callback still
// in flight on another thread will observe the absence of the singleton and
// no-op.
func CleanUpBluetoothInterface() {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	btInstance = nil
	btTestInstance = nil
}

// InitializeBluetoothInterfaceForTesting installs a test double (typically a
// *FakeBluetoothInterface) as the global hub.
func InitializeBluetoothInterfaceForTesting(testInstance BluetoothInterface) {
	btInstanceLock.Lock()
	defer btInstanceLock.Unlock()
	if btInstance != nil || btTestInstance != nil {
		panic("hal: BluetoothInterface already initialized")
	}
	if testInstance == nil {
		panic("hal: nil test instance")
	}
	btTestInstance = testInstance
}
