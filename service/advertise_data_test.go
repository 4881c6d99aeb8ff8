package service

import "testing"

func TestAdvertiseDataIsValid(t *testing.T) {
	cases := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{"empty", nil, true},
		{"manufacturer data", []byte{0x04, 0xFF, 0x01, 0x02, 0x00}, true},
		{"manufacturer type only", []byte{0x01, 0xFF}, true},
		{"zero length terminator", []byte{0x01, 0xFF, 0x00, 0x00}, true},
		{"flags owned by stack", []byte{0x02, 0x01, 0x00}, false},
		{"oob device address", []byte{0x02, 0x0C, 0x00}, false},
		{"oob class of device", []byte{0x02, 0x0D, 0x00}, false},
		{"oob pairing hash", []byte{0x02, 0x0E, 0x00}, false},
		{"oob pairing randomizer", []byte{0x02, 0x0F, 0x00}, false},
		{"length past end", []byte{0x05, 0xFF, 0x01, 0x02}, false},
		{"single overlong length", []byte{0x01}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewAdvertiseData(tc.data).IsValid(); got != tc.valid {
				t.Errorf("IsValid(% X) = %t, want %t", tc.data, got, tc.valid)
			}
		})
	}

	t.Run("over budget", func(t *testing.T) {
		big := make([]byte, MaxAdvertiseDataLength+1)
		big[0] = byte(len(big) - 1)
		big[1] = 0xFF
		if NewAdvertiseData(big).IsValid() {
			t.Error("payload over the controller budget reported valid")
		}
	})
}

func TestAdvertiseDataEqual(t *testing.T) {
	a := NewAdvertiseData([]byte{0x01, 0xFF})
	b := NewAdvertiseData([]byte{0x01, 0xFF})
	if !a.Equal(b) {
		t.Error("identical payloads reported unequal")
	}

	b.IncludeDeviceName = true
	if a.Equal(b) {
		t.Error("payloads differing in IncludeDeviceName reported equal")
	}

	c := NewAdvertiseData([]byte{0x01, 0xFE})
	if a.Equal(c) {
		t.Error("payloads differing in bytes reported equal")
	}
}

func TestAdvertiseDataCopiesInput(t *testing.T) {
	raw := []byte{0x01, 0xFF}
	d := NewAdvertiseData(raw)
	raw[1] = 0x00
	if d.Data()[1] != 0xFF {
		t.Error("AdvertiseData aliased the caller's slice")
	}
}

func TestSplitAdvertiseFields(t *testing.T) {
	payload := []byte{
		0x03, 0xFF, 0x4C, 0x00, // manufacturer: company 0x004C
		0x03, 0x03, 0x0F, 0x18, // complete 16-bit UUIDs: 0x180F
		0x04, 0x16, 0x0F, 0x18, 0x64, // service data: 0x180F -> 100
	}
	manufacturer, serviceData, serviceUUID := splitAdvertiseFields(NewAdvertiseData(payload))

	if want := []byte{0x4C, 0x00}; string(manufacturer) != string(want) {
		t.Errorf("manufacturer = % X, want % X", manufacturer, want)
	}
	if want := []byte{0x0F, 0x18, 0x64}; string(serviceData) != string(want) {
		t.Errorf("serviceData = % X, want % X", serviceData, want)
	}
	if want := []byte{0x0F, 0x18}; string(serviceUUID) != string(want) {
		t.Errorf("serviceUUID = % X, want % X", serviceUUID, want)
	}
}
