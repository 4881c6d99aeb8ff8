package hal

import "testing"

// stubAdapterHAL captures the callback sink so tests can play the stack.
type stubAdapterHAL struct {
	sink               AdapterCallbacks
	setCallbacksStatus Status
}

func (s *stubAdapterHAL) SetCallbacks(cb AdapterCallbacks) Status {
	s.sink = cb
	return s.setCallbacksStatus
}

func (s *stubAdapterHAL) Enable() Status                     { return StatusSuccess }
func (s *stubAdapterHAL) Disable() Status                    { return StatusSuccess }
func (s *stubAdapterHAL) GetAdapterProperties() Status       { return StatusSuccess }
func (s *stubAdapterHAL) SetAdapterProperty(Property) Status { return StatusSuccess }

type recordingBTObserver struct {
	BaseBluetoothObserver
	states []AdapterState
}

func (o *recordingBTObserver) AdapterStateChangedCallback(state AdapterState) {
	o.states = append(o.states, state)
}

func TestInitializeBluetoothInterfaceRejectedCallbacks(t *testing.T) {
	stub := &stubAdapterHAL{setCallbacksStatus: StatusFail}
	if err := InitializeBluetoothInterface(stub); err == nil {
		t.Fatal("initialization succeeded despite rejected callback table")
	}
	if IsBluetoothInterfaceInitialized() {
		t.Error("hub reported initialized after failed initialization")
	}
}

func TestGetBluetoothInterfaceBeforeInitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("GetBluetoothInterface did not panic before initialization")
		}
	}()
	GetBluetoothInterface()
}

func TestBluetoothDispatchFanOut(t *testing.T) {
	stub := &stubAdapterHAL{setCallbacksStatus: StatusSuccess}
	if err := InitializeBluetoothInterface(stub); err != nil {
		t.Fatalf("InitializeBluetoothInterface: %v", err)
	}
	t.Cleanup(CleanUpBluetoothInterface)

	o := &recordingBTObserver{}
	bt := GetBluetoothInterface()
	bt.AddObserver(o)

	stub.sink.AdapterStateChangedCallback(AdapterStateOn)
	stub.sink.AdapterStateChangedCallback(AdapterStateOff)
	if len(o.states) != 2 || o.states[0] != AdapterStateOn || o.states[1] != AdapterStateOff {
		t.Errorf("observer saw %v", o.states)
	}

	bt.RemoveObserver(o)
	stub.sink.AdapterStateChangedCallback(AdapterStateOn)
	if len(o.states) != 2 {
		t.Error("removed observer still receiving callbacks")
	}
}

func TestBluetoothCallbackAfterCleanUpDropped(t *testing.T) {
	stub := &stubAdapterHAL{setCallbacksStatus: StatusSuccess}
	if err := InitializeBluetoothInterface(stub); err != nil {
		t.Fatalf("InitializeBluetoothInterface: %v", err)
	}
	o := &recordingBTObserver{}
	GetBluetoothInterface().AddObserver(o)

	CleanUpBluetoothInterface()

	stub.sink.AdapterStateChangedCallback(AdapterStateOn)
	stub.sink.AdapterPropertiesCallback(StatusSuccess, []Property{
		{Type: PropertyBDName, Value: []byte("x")},
	})
	if len(o.states) != 0 {
		t.Error("callbacks delivered after the hub was destroyed")
	}
}

func TestBluetoothNilPropertyValuePanics(t *testing.T) {
	stub := &stubAdapterHAL{setCallbacksStatus: StatusSuccess}
	if err := InitializeBluetoothInterface(stub); err != nil {
		t.Fatalf("InitializeBluetoothInterface: %v", err)
	}
	t.Cleanup(CleanUpBluetoothInterface)

	defer func() {
		if recover() == nil {
			t.Error("nil property value did not panic")
		}
	}()
	stub.sink.AdapterPropertiesCallback(StatusSuccess, []Property{{Type: PropertyBDName}})
}
