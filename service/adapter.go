package service

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/3EleVen/android-system-bt/logger"
	"github.com/3EleVen/android-system-bt/service/hal"
)

// AdapterState is the power state of the local Bluetooth adapter, including
// the transitional states the stack itself never reports.
type AdapterState int32

const (
	AdapterStateOff AdapterState = iota
	AdapterStateTurningOn
	AdapterStateOn
	AdapterStateTurningOff
)

func (s AdapterState) String() string {
	switch s {
	case AdapterStateOff:
		return "off"
	case AdapterStateTurningOn:
		return "turning-on"
	case AdapterStateOn:
		return "on"
	case AdapterStateTurningOff:
		return "turning-off"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// AdapterObserver is notified of every adapter power state transition,
// including the optimistic transitional ones.
type AdapterObserver interface {
	OnAdapterStateChanged(a *Adapter, prevState, newState AdapterState)
}

// Values reported before the stack has told us anything.
const (
	defaultAdapterAddress = "00:00:00:00:00:00"
	defaultAdapterName    = "not-initialized"
)

// Longest adapter name the stack accepts, in bytes.
const maxAdapterNameLength = 248

// Minimum number of controller advertising instances for the multi-adv
// feature set to count as supported.
const minAdvInstancesForMultiAdv = 5

// Adapter is the host-side view of the local Bluetooth adapter: a power
// state machine layered over the stack's enable/disable calls, plus cached
// adapter properties. It registers itself on the bluetooth dispatch hub at
// construction and owns the process-wide LowEnergyClientFactory.
type Adapter struct {
	hal.BaseBluetoothObserver

	// state holds an AdapterState. A single atomic keeps reads cheap for
	// the hot IsEnabled path; transitions race benignly against stack
	// callbacks, which always win by writing last.
	state atomic.Int32

	// Guards the cached properties.
	propsMu         sync.RWMutex
	address         string
	name            string
	multiAdvSupport bool

	// Guards the observer set.
	observersMu sync.Mutex
	observers   observerSet

	bleClientFactory *LowEnergyClientFactory
}

type observerSet struct {
	items []AdapterObserver
}

func (s *observerSet) add(o AdapterObserver) {
	for _, existing := range s.items {
		if existing == o {
			return
		}
	}
	s.items = append(s.items, o)
}

func (s *observerSet) remove(o AdapterObserver) {
	for i, existing := range s.items {
		if existing == o {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func (s *observerSet) snapshot() []AdapterObserver {
	out := make([]AdapterObserver, len(s.items))
	copy(out, s.items)
	return out
}

// NewAdapter builds the adapter, attaches it to the bluetooth dispatch hub,
// and kicks off an initial property fetch so the cached address and name
// converge once the stack answers.
func NewAdapter() *Adapter {
	a := &Adapter{
		address: defaultAdapterAddress,
		name:    defaultAdapterName,
	}
	a.state.Store(int32(AdapterStateOff))

	hal.GetBluetoothInterface().AddObserver(a)
	a.bleClientFactory = NewLowEnergyClientFactory()

	if status := hal.GetBluetoothInterface().HAL().GetAdapterProperties(); status != hal.StatusSuccess {
		logger.Warn("adapter", "Initial property fetch rejected: %s", status)
	}
	return a
}

// Close detaches the adapter and its client factory from the dispatch hubs.
func (a *Adapter) Close() {
	a.bleClientFactory.Close()
	hal.GetBluetoothInterface().RemoveObserver(a)
}

// LowEnergyClientFactory returns the registry used to create BLE clients.
func (a *Adapter) LowEnergyClientFactory() *LowEnergyClientFactory {
	return a.bleClientFactory
}

// GetState returns the current power state.
func (a *Adapter) GetState() AdapterState {
	return AdapterState(a.state.Load())
}

// IsEnabled reports whether the adapter is fully powered on.
func (a *Adapter) IsEnabled() bool {
	return a.GetState() == AdapterStateOn
}

// Enable asks the stack to power the adapter on. The state moves to
// TurningOn before the HAL call; a synchronous rejection rolls it back to
// Off. Returns false if the adapter is not Off or the stack rejects the
// call.
func (a *Adapter) Enable() bool {
	current := a.GetState()
	if current != AdapterStateOff {
		logger.Warn("adapter", "Enable in state %s rejected", current)
		return false
	}

	a.setState(AdapterStateTurningOn)
	if status := hal.GetBluetoothInterface().HAL().Enable(); status != hal.StatusSuccess {
		logger.Error("adapter", "Failed to enable adapter: %s", status)
		a.setState(AdapterStateOff)
		return false
	}
	return true
}

// Disable asks the stack to power the adapter off, with the mirrored
// optimistic transition and rollback.
func (a *Adapter) Disable() bool {
	current := a.GetState()
	if current != AdapterStateOn {
		logger.Warn("adapter", "Disable in state %s rejected", current)
		return false
	}

	a.setState(AdapterStateTurningOff)
	if status := hal.GetBluetoothInterface().HAL().Disable(); status != hal.StatusSuccess {
		logger.Error("adapter", "Failed to disable adapter: %s", status)
		a.setState(AdapterStateOn)
		return false
	}
	return true
}

// GetAddress returns the adapter's public address in colon-hex form, or the
// all-zero placeholder before the stack has reported it.
func (a *Adapter) GetAddress() string {
	a.propsMu.RLock()
	defer a.propsMu.RUnlock()
	return a.address
}

// GetName returns the adapter's friendly name.
func (a *Adapter) GetName() string {
	a.propsMu.RLock()
	defer a.propsMu.RUnlock()
	return a.name
}

// SetName asks the stack to change the adapter name. The cached name is not
// updated here; it follows the stack's property-changed callback.
func (a *Adapter) SetName(name string) bool {
	if len(name) == 0 || len(name) > maxAdapterNameLength {
		logger.Error("adapter", "Invalid adapter name length: %d", len(name))
		return false
	}

	prop := hal.Property{Type: hal.PropertyBDName, Value: []byte(name)}
	if status := hal.GetBluetoothInterface().HAL().SetAdapterProperty(prop); status != hal.StatusSuccess {
		logger.Error("adapter", "Failed to set adapter name: %s", status)
		return false
	}
	return true
}

// IsMultiAdvertisementSupported reports whether the controller offers enough
// advertising instances for concurrent per-application advertisers.
func (a *Adapter) IsMultiAdvertisementSupported() bool {
	a.propsMu.RLock()
	defer a.propsMu.RUnlock()
	return a.multiAdvSupport
}

// AddObserver registers an observer for state transitions.
func (a *Adapter) AddObserver(o AdapterObserver) {
	a.observersMu.Lock()
	defer a.observersMu.Unlock()
	a.observers.add(o)
}

// RemoveObserver removes a previously registered observer.
func (a *Adapter) RemoveObserver(o AdapterObserver) {
	a.observersMu.Lock()
	defer a.observersMu.Unlock()
	a.observers.remove(o)
}

// AdapterStateChangedCallback folds the stack's two-valued power state into
// the four-valued machine. An unrecognized value means the HAL contract is
// broken; there is nothing sane to continue with.
func (a *Adapter) AdapterStateChangedCallback(state hal.AdapterState) {
	switch state {
	case hal.AdapterStateOff:
		a.setState(AdapterStateOff)
	case hal.AdapterStateOn:
		a.setState(AdapterStateOn)
	default:
		panic(fmt.Sprintf("unexpected adapter state from stack: %d", int(state)))
	}
}

// AdapterPropertiesCallback refreshes the cached properties from a stack
// report.
func (a *Adapter) AdapterPropertiesCallback(status hal.Status, props []hal.Property) {
	if status != hal.StatusSuccess {
		logger.Warn("adapter", "Property report with status: %s", status)
		return
	}

	a.propsMu.Lock()
	defer a.propsMu.Unlock()
	for _, prop := range props {
		switch prop.Type {
		case hal.PropertyBDAddr:
			if len(prop.Value) != 6 {
				logger.Error("adapter", "Malformed adapter address property: %d bytes", len(prop.Value))
				continue
			}
			b := prop.Value
			a.address = fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
				b[0], b[1], b[2], b[3], b[4], b[5])
			logger.Debug("adapter", "Adapter address: %s", a.address)
		case hal.PropertyBDName:
			a.name = string(prop.Value)
			logger.Debug("adapter", "Adapter name: %s", a.name)
		case hal.PropertyLocalLeFeatures:
			if len(prop.Value) == 0 {
				logger.Error("adapter", "Empty LE features property")
				continue
			}
			// First byte carries the controller's max advertising instances.
			a.multiAdvSupport = int(prop.Value[0]) >= minAdvInstancesForMultiAdv
			logger.Debug("adapter", "Controller advertising instances: %d", prop.Value[0])
		default:
			logger.Trace("adapter", "Ignoring property type %s", prop.Type)
		}
	}
}

// setState publishes a transition and notifies observers outside any
// property lock.
func (a *Adapter) setState(newState AdapterState) {
	prev := AdapterState(a.state.Swap(int32(newState)))
	if prev == newState {
		return
	}
	logger.Info("adapter", "🔵 Adapter state: %s -> %s", prev, newState)

	a.observersMu.Lock()
	observers := a.observers.snapshot()
	a.observersMu.Unlock()
	for _, o := range observers {
		o.OnAdapterStateChanged(a, prev, newState)
	}
}
