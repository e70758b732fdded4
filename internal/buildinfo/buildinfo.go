// Package buildinfo reports the version stamped into the tiptap binary.
package buildinfo

import "runtime/debug"

const devVersion = "dev"

var version = devVersion

// SetVersion overrides the reported version; empty values are ignored.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// Version returns the stamped version, falling back to the module version
// recorded by the Go toolchain.
func Version() string {
	if version != devVersion {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return devVersion
}

// Revision returns the short VCS revision the binary was built from, with a
// "+dirty" suffix for modified trees. It is empty outside a VCS checkout.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
