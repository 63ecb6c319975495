package appliance

import "strconv"

// Fan levels understood by the dehumidifier wire protocol.
const (
	FanSilent = 40
	FanMedium = 60
	FanTurbo  = 80
)

// Operating modes.
const (
	ModeSet        = 1
	ModeContinuous = 2
	ModeSmart      = 3
	ModeDry        = 4
)

var modeNames = map[int]string{
	ModeSet:        "set",
	ModeContinuous: "continuous",
	ModeSmart:      "smart",
	ModeDry:        "dry",
}

var fanNames = map[int]string{
	FanSilent: "silent",
	FanMedium: "medium",
	FanTurbo:  "turbo",
}

// ModeName maps a mode code to its symbolic name. Codes outside the known
// set pass through numerically.
func ModeName(code int) string {
	if name, ok := modeNames[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// FanSpeedName maps a fan level to its symbolic name. Devices report
// intermediate levels; those pass through numerically.
func FanSpeedName(level int) string {
	if name, ok := fanNames[level]; ok {
		return name
	}
	return strconv.Itoa(level)
}
