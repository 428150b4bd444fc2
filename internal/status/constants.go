// internal/status/constants.go
package status

// Port Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerPort is the fixed number of logical slots per port.
const SlotsPerPort = 24

// ---- SLOT INDICES ----

// SlotHealthCode holds the port health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the latched local link-down reason.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the port has been not OK.
const SlotSecondsInError = 2

// SlotLinkState holds the host link state (link.LinkState).
const SlotLinkState = 3

// SlotPhysState and SlotLogState hold the driver-visible port states.
const (
	SlotPhysState = 4
	SlotLogState  = 5
)

// SlotSpeed holds the negotiated lane speed in units of 100 Mb/s.
const SlotSpeed = 6

// SlotWidths holds active tx widths in the high byte and rx in the low byte.
const SlotWidths = 7

// SlotCRCMode holds the negotiated LTP CRC mode.
const SlotCRCMode = 8

// SlotNeighborReason holds the latched neighbor link-down reason.
const SlotNeighborReason = 9

// SlotChannelHealth holds the firmware command channel health.
const SlotChannelHealth = 10

// SlotLinkUps and SlotLinkDowns are saturating transition counters.
const (
	SlotLinkUps   = 11
	SlotLinkDowns = 12
)

// ---- RESERVED RANGE ----

// Slots 13–15 are reserved for future use.
const SlotReservedStart = 13
const SlotReservedEnd = 15

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 16

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents an active link.
const HealthOK uint16 = 1

// HealthError represents a dead command channel or a link lost with a reason.
const HealthError uint16 = 2

// HealthStale represents a register bus that stopped answering.
const HealthStale uint16 = 3

// HealthDisabled represents an administratively disabled port.
const HealthDisabled uint16 = 4

// HealthLinking represents a port on its way up.
const HealthLinking uint16 = 5
