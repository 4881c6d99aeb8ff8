package service

import "time"

// AdvertiseMode selects the trade-off between discovery latency and power.
type AdvertiseMode int

const (
	AdvertiseModeLowPower   AdvertiseMode = iota // 1000ms interval
	AdvertiseModeBalanced                        // 250ms interval
	AdvertiseModeLowLatency                      // 100ms interval
)

// TxPowerLevel selects the radiated power for advertising packets.
type TxPowerLevel int

const (
	TxPowerLevelUltraLow TxPowerLevel = iota // -21 dBm
	TxPowerLevelLow                          // -15 dBm
	TxPowerLevelMedium                       // -7 dBm
	TxPowerLevelHigh                         // 1 dBm
)

// AdvertiseSettings is the mode/interval/tx-power/connectable value object
// passed to StartAdvertising.
type AdvertiseSettings struct {
	Mode         AdvertiseMode
	Timeout      time.Duration
	TxPowerLevel TxPowerLevel
	Connectable  bool
}

// DefaultAdvertiseSettings returns low-power, connectable, no-timeout
// settings.
func DefaultAdvertiseSettings() AdvertiseSettings {
	return AdvertiseSettings{
		Mode:         AdvertiseModeLowPower,
		TxPowerLevel: TxPowerLevelMedium,
		Connectable:  true,
	}
}

// Advertising intervals in 0.625ms controller units, per mode, and the
// min-to-max spread handed to the stack.
const (
	advIntervalLowPowerUnit   = 1600 // 1000ms
	advIntervalBalancedUnit   = 400  // 250ms
	advIntervalLowLatencyUnit = 160  // 100ms
	advIntervalDeltaUnit      = 16   // 10ms spread between min and max
)

// Advertising event types understood by the stack.
const (
	advEventTypeConnectable    = 0
	advEventTypeScannable      = 2
	advEventTypeNonConnectable = 3
)

// All three advertising channels.
const advChannelMapAll = 7

// intervalUnit maps the mode to the minimum advertising interval in
// controller units.
func (s AdvertiseSettings) intervalUnit() int {
	switch s.Mode {
	case AdvertiseModeBalanced:
		return advIntervalBalancedUnit
	case AdvertiseModeLowLatency:
		return advIntervalLowLatencyUnit
	default:
		return advIntervalLowPowerUnit
	}
}

// eventType picks the advertising event type: connectable wins, otherwise a
// non-empty scan response makes the advertisement scannable.
func (s AdvertiseSettings) eventType(scanResponse AdvertiseData) int {
	if s.Connectable {
		return advEventTypeConnectable
	}
	if scanResponse.hasContent() {
		return advEventTypeScannable
	}
	return advEventTypeNonConnectable
}
