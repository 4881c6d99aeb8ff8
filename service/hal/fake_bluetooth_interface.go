package hal

import "sync"

// TestAdapterHandler scripts the synchronous half of the adapter HAL for
// tests. Nil funcs default to StatusSuccess.
type TestAdapterHandler struct {
	Enable               func() Status
	Disable              func() Status
	GetAdapterProperties func() Status
	SetAdapterProperty   func(prop Property) Status
}

// FakeBluetoothInterface is a BluetoothInterface test double. Install it with
// InitializeBluetoothInterfaceForTesting and drive observer fan-out through
// the Notify methods.
type FakeBluetoothInterface struct {
	mu        sync.Mutex
	observers observerList[BluetoothObserver]
	handler   *TestAdapterHandler
}

func NewFakeBluetoothInterface(handler *TestAdapterHandler) *FakeBluetoothInterface {
	if handler == nil {
		handler = &TestAdapterHandler{}
	}
	return &FakeBluetoothInterface{handler: handler}
}

func (f *FakeBluetoothInterface) AddObserver(observer BluetoothObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers.Add(observer)
}

func (f *FakeBluetoothInterface) RemoveObserver(observer BluetoothObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers.Remove(observer)
}

func (f *FakeBluetoothInterface) HAL() AdapterHAL {
	return fakeAdapterHAL{f}
}

// NotifyAdapterStateChanged fans an adapter-state-changed event out to all
// observers, emulating a callback on a stack thread.
func (f *FakeBluetoothInterface) NotifyAdapterStateChanged(state AdapterState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.observers.Snapshot() {
		observer.AdapterStateChangedCallback(state)
	}
}

func (f *FakeBluetoothInterface) NotifyAdapterPropertiesChanged(status Status, props []Property) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, observer := range f.observers.Snapshot() {
		observer.AdapterPropertiesCallback(status, props)
	}
}

type fakeAdapterHAL struct {
	f *FakeBluetoothInterface
}

func (h fakeAdapterHAL) SetCallbacks(AdapterCallbacks) Status {
	return StatusSuccess
}

func (h fakeAdapterHAL) Enable() Status {
	if h.f.handler.Enable == nil {
		return StatusSuccess
	}
	return h.f.handler.Enable()
}

func (h fakeAdapterHAL) Disable() Status {
	if h.f.handler.Disable == nil {
		return StatusSuccess
	}
	return h.f.handler.Disable()
}

func (h fakeAdapterHAL) GetAdapterProperties() Status {
	if h.f.handler.GetAdapterProperties == nil {
		return StatusSuccess
	}
	return h.f.handler.GetAdapterProperties()
}

func (h fakeAdapterHAL) SetAdapterProperty(prop Property) Status {
	if h.f.handler.SetAdapterProperty == nil {
		return StatusSuccess
	}
	return h.f.handler.SetAdapterProperty(prop)
}
