package version

import "runtime/debug"

var (
	// Version is the release identifier, set at build time via -ldflags.
	// When unset it falls back to the module version recorded by go install.
	Version = "dev"
)

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
