// Package service implements the host-side BLE service layer: per-application
// advertising clients, their registration registry, and the adapter power
// state machine, all driven by callbacks from the hal dispatch hubs.
package service

// Maximum number of bytes the controller accepts in a single advertising or
// scan response payload (legacy advertising PDU budget).
const MaxAdvertiseDataLength = 31

// AD types inside an advertising payload that the stack manages itself.
// Client payloads must not carry them.
const (
	adTypeFlags            = 0x01
	adTypeOOBDeviceAddress = 0x0C
	adTypeOOBClassOfDevice = 0x0D
	adTypeOOBPairingHashC  = 0x0E
	adTypeOOBPairingRandR  = 0x0F
)

// AD types the stack's instance-data call takes as separate arguments.
const (
	adTypeComplete16BitUUIDs  = 0x03
	adTypeComplete128BitUUIDs = 0x07
	adTypeServiceData16       = 0x16
	adTypeManufacturerData    = 0xFF
)

// AdvertiseData is the byte-encoded payload broadcast by an advertiser, plus
// the stack-populated fields the client wants appended. It is a value type;
// the byte slice is copied on construction.
type AdvertiseData struct {
	data []byte

	// IncludeDeviceName asks the stack to append the adapter name.
	IncludeDeviceName bool
	// IncludeTxPower asks the stack to append the TX power level.
	IncludeTxPower bool
}

// NewAdvertiseData builds an AdvertiseData around a raw TLV byte sequence.
func NewAdvertiseData(data []byte) AdvertiseData {
	copied := make([]byte, len(data))
	copy(copied, data)
	return AdvertiseData{data: copied}
}

// Data returns the raw TLV bytes.
func (d AdvertiseData) Data() []byte {
	return d.data
}

// IsValid walks the payload's TLV structures and reports whether the payload
// can be handed to the stack: every length byte must fit within the payload,
// the total must fit the controller budget, and fields owned by the stack
// (flags, OOB data) must be absent. A field whose *content* is malformed is
// still considered valid here; the stack owns that judgement.
func (d AdvertiseData) IsValid() bool {
	if len(d.data) > MaxAdvertiseDataLength {
		return false
	}

	for i := 0; i < len(d.data); {
		fieldLen := int(d.data[i])
		// A zero length terminates the payload (padding).
		if fieldLen == 0 {
			break
		}
		// A length that points past the end of the payload is badly formed.
		if i+fieldLen >= len(d.data) {
			return false
		}

		switch d.data[i+1] {
		case adTypeFlags,
			adTypeOOBDeviceAddress,
			adTypeOOBClassOfDevice,
			adTypeOOBPairingHashC,
			adTypeOOBPairingRandR:
			return false
		}
		i += fieldLen + 1
	}
	return true
}

// hasContent reports whether the payload carries any bytes or asks the stack
// to append any field. An empty scan response means the advertisement is not
// scannable and nothing needs pushing for it.
func (d AdvertiseData) hasContent() bool {
	return len(d.data) > 0 || d.IncludeDeviceName || d.IncludeTxPower
}

// Equal reports whether two payloads carry identical bytes and flags.
func (d AdvertiseData) Equal(other AdvertiseData) bool {
	if d.IncludeDeviceName != other.IncludeDeviceName || d.IncludeTxPower != other.IncludeTxPower {
		return false
	}
	if len(d.data) != len(other.data) {
		return false
	}
	for i := range d.data {
		if d.data[i] != other.data[i] {
			return false
		}
	}
	return true
}
