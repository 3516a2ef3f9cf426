package misc

import (
	"fmt"
	"runtime/debug"
)

// Version gets replaced at link time for release builds.
var Version = "dev"

func GetVersionInfo() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return fmt.Sprintf("%s (%s)", Version, setting.Value)
			}
		}
	}
	return Version
}
