package hal

import (
	"testing"

	"github.com/google/uuid"
)

// stubGattHAL captures the callback sinks so tests can play the stack.
type stubGattHAL struct {
	clientSink         GattClientCallbacks
	serverSink         GattServerCallbacks
	setCallbacksStatus Status
}

func (s *stubGattHAL) SetCallbacks(client GattClientCallbacks, server GattServerCallbacks) Status {
	s.clientSink = client
	s.serverSink = server
	return s.setCallbacksStatus
}

func (s *stubGattHAL) Client() GattClientHAL { return stubClientHAL{} }
func (s *stubGattHAL) Server() GattServerHAL { return stubServerHAL{} }

type stubClientHAL struct{}

func (stubClientHAL) RegisterClient(uuid.UUID) Status { return StatusSuccess }
func (stubClientHAL) UnregisterClient(int) Status     { return StatusSuccess }
func (stubClientHAL) MultiAdvEnable(int, int, int, int, int, int, int) Status {
	return StatusSuccess
}
func (stubClientHAL) MultiAdvSetInstData(int, bool, bool, bool, int, []byte, []byte, []byte) Status {
	return StatusSuccess
}
func (stubClientHAL) MultiAdvDisable(int) Status { return StatusSuccess }

type stubServerHAL struct{}

func (stubServerHAL) RegisterServer(uuid.UUID) Status { return StatusSuccess }
func (stubServerHAL) UnregisterServer(int) Status     { return StatusSuccess }

// countingObserver counts client-role callback deliveries.
type countingObserver struct {
	BaseClientObserver
	registerCalls int
	enableCalls   int
}

func (o *countingObserver) RegisterClientCallback(GattInterface, Status, int, uuid.UUID) {
	o.registerCalls++
}

func (o *countingObserver) MultiAdvEnableCallback(GattInterface, int, Status) {
	o.enableCalls++
}

func initStubGatt(t *testing.T) *stubGattHAL {
	t.Helper()
	stub := &stubGattHAL{setCallbacksStatus: StatusSuccess}
	if err := InitializeGattInterface(stub); err != nil {
		t.Fatalf("InitializeGattInterface: %v", err)
	}
	t.Cleanup(CleanUpGattInterface)
	return stub
}

func TestInitializeGattInterfaceRejectedCallbacks(t *testing.T) {
	stub := &stubGattHAL{setCallbacksStatus: StatusFail}
	if err := InitializeGattInterface(stub); err == nil {
		t.Fatal("initialization succeeded despite rejected callback table")
	}
	if IsGattInterfaceInitialized() {
		t.Error("hub reported initialized after failed initialization")
	}
}

func TestGetGattInterfaceBeforeInitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("GetGattInterface did not panic before initialization")
		}
	}()
	GetGattInterface()
}

func TestGattDispatchFanOut(t *testing.T) {
	stub := initStubGatt(t)
	gatt := GetGattInterface()

	a := &countingObserver{}
	b := &countingObserver{}
	gatt.AddClientObserver(a)
	gatt.AddClientObserver(b)
	// Adding an observer twice must not double its deliveries.
	gatt.AddClientObserver(a)

	stub.clientSink.RegisterClientCallback(StatusSuccess, 1, uuid.New())
	if a.registerCalls != 1 || b.registerCalls != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", a.registerCalls, b.registerCalls)
	}

	gatt.RemoveClientObserver(b)
	stub.clientSink.MultiAdvEnableCallback(1, StatusSuccess)
	if a.enableCalls != 1 {
		t.Errorf("remaining observer saw %d enable callbacks, want 1", a.enableCalls)
	}
	if b.enableCalls != 0 {
		t.Errorf("removed observer saw %d enable callbacks, want 0", b.enableCalls)
	}
}

// selfRemovingObserver unhooks itself from inside its first callback, the way
// a client tears down when its registration fails.
type selfRemovingObserver struct {
	BaseClientObserver
	calls int
}

func (o *selfRemovingObserver) RegisterClientCallback(gatt GattInterface, _ Status, _ int, _ uuid.UUID) {
	o.calls++
	gatt.RemoveClientObserverUnsafe(o)
}

func TestGattObserverSelfRemovalDuringDispatch(t *testing.T) {
	stub := initStubGatt(t)
	gatt := GetGattInterface()

	o := &selfRemovingObserver{}
	gatt.AddClientObserver(o)

	stub.clientSink.RegisterClientCallback(StatusSuccess, 1, uuid.New())
	stub.clientSink.RegisterClientCallback(StatusSuccess, 2, uuid.New())
	if o.calls != 1 {
		t.Errorf("observer saw %d callbacks, want 1", o.calls)
	}
}

// addingObserver registers a second observer from inside a callback, the way
// the client factory attaches a freshly built client.
type addingObserver struct {
	BaseClientObserver
	added *countingObserver
}

func (o *addingObserver) RegisterClientCallback(gatt GattInterface, _ Status, _ int, _ uuid.UUID) {
	gatt.AddClientObserverUnsafe(o.added)
}

func TestGattObserverAdditionDuringDispatch(t *testing.T) {
	stub := initStubGatt(t)
	gatt := GetGattInterface()

	added := &countingObserver{}
	gatt.AddClientObserver(&addingObserver{added: added})

	// The observer added mid-dispatch is not part of the snapshot being
	// walked, but receives everything afterwards.
	stub.clientSink.RegisterClientCallback(StatusSuccess, 1, uuid.New())
	if added.registerCalls != 0 {
		t.Errorf("observer added mid-dispatch saw %d callbacks, want 0", added.registerCalls)
	}
	stub.clientSink.MultiAdvEnableCallback(1, StatusSuccess)
	if added.enableCalls != 1 {
		t.Errorf("observer saw %d callbacks after attachment, want 1", added.enableCalls)
	}
}

func TestGattCallbackAfterCleanUpDropped(t *testing.T) {
	stub := &stubGattHAL{setCallbacksStatus: StatusSuccess}
	if err := InitializeGattInterface(stub); err != nil {
		t.Fatalf("InitializeGattInterface: %v", err)
	}
	o := &countingObserver{}
	GetGattInterface().AddClientObserver(o)

	CleanUpGattInterface()

	// A stack thread may still hold the sink; its events must be dropped.
	stub.clientSink.RegisterClientCallback(StatusSuccess, 1, uuid.New())
	stub.clientSink.MultiAdvEnableCallback(1, StatusSuccess)
	if o.registerCalls != 0 || o.enableCalls != 0 {
		t.Error("callbacks delivered after the hub was destroyed")
	}
	if IsGattInterfaceInitialized() {
		t.Error("hub reported initialized after cleanup")
	}
}
