package sched

// Version information for the polytile code generator.
const (
	// Version is the current version of the generator.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides build information about the generator.
type Info struct {
	// Version is the generator version string.
	Version string

	// Strategies lists the supported tiling strategies.
	Strategies []string
}

// GetInfo returns information about the generator.
//
// Example:
//
//	info := sched.GetInfo()
//	fmt.Printf("polytile %s (strategies: %v)\n", info.Version, info.Strategies)
func GetInfo() Info {
	return Info{
		Version:    Version,
		Strategies: []string{Plain.String(), Overlapped.String(), Split.String()},
	}
}
