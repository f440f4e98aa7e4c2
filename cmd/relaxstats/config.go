package main

import (
	"log"
	"strings"

	"github.com/SJTUGuofei/so3mip"
	"github.com/spf13/viper"
)

var limitsByName = map[string]so3mip.RollPitchYawLimits{
	"roll_-pi2_pi2":  so3mip.RollNegPI2ToPI2,
	"roll_0_pi":      so3mip.Roll0ToPI,
	"pitch_-pi2_pi2": so3mip.PitchNegPI2ToPI2,
	"pitch_0_pi":     so3mip.Pitch0ToPI,
	"yaw_-pi2_pi2":   so3mip.YawNegPI2ToPI2,
	"yaw_0_pi":       so3mip.Yaw0ToPI,
}

// readLimits folds the scenario's `relaxation.limits` list into the bit set.
func readLimits() so3mip.RollPitchYawLimits {
	limits := so3mip.NoLimits
	for _, name := range viper.GetStringSlice("relaxation.limits") {
		flag, found := limitsByName[strings.ToLower(name)]
		if !found {
			log.Fatalf("unknown RPY limit %q", name)
		}
		limits |= flag
	}
	return limits
}

func limitNames(limits so3mip.RollPitchYawLimits) string {
	if limits == so3mip.NoLimits {
		return "(none)"
	}
	var names []string
	for name, flag := range limitsByName {
		if limits&flag != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
