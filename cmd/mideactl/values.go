package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joshp123/mideactl/internal/appliance"
)

var fanLevels = map[string]int{
	"silent": appliance.FanSilent,
	"medium": appliance.FanMedium,
	"turbo":  appliance.FanTurbo,
}

var modeCodes = map[string]int{
	"set":        appliance.ModeSet,
	"continuous": appliance.ModeContinuous,
	"smart":      appliance.ModeSmart,
	"dry":        appliance.ModeDry,
}

func parseFan(input string) (int, error) {
	return resolveNamedValue("fan strength", input, fanLevels)
}

func parseMode(input string) (int, error) {
	return resolveNamedValue("mode", input, modeCodes)
}

func parseSwitch(name, input string) (bool, error) {
	value, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(input)))
	if err != nil {
		return false, fmt.Errorf("--%s wants true or false, got %q", name, input)
	}
	return value, nil
}

// resolveNamedValue accepts either a symbolic name or a raw numeric
// value, so operators can pass through levels the names do not cover.
func resolveNamedValue(kind, input string, options map[string]int) (int, error) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if value, ok := options[needle]; ok {
		return value, nil
	}
	if value, err := strconv.Atoi(needle); err == nil {
		return value, nil
	}

	available := make([]string, 0, len(options))
	for label := range options {
		available = append(available, label)
	}
	sort.Strings(available)
	return 0, fmt.Errorf("%s %q not recognized. Available: %s, or a number", kind, input, strings.Join(available, ", "))
}
