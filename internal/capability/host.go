package capability

// HostDescriptor describes a target for the machine the tool runs on, used
// when no build target is named. It enables the features the bundled engine
// is always compiled with and opts into the platform override where the
// host is not a supported platform.
func HostDescriptor(goos string) Descriptor {
	d := Descriptor{
		Target: "host",
		Features: map[Feature]bool{
			FeatureDeserialize: true,
			FeatureJSON1:       true,
			FeatureRTree:       true,
		},
	}
	switch goos {
	case "windows":
		d.Platform = "windows"
	case "darwin":
		d.Platform = "mac"
	case "ios", "android", "js":
		d.Platform = goos
	default:
		d.Platform = "linux"
	}
	if p, ok := LookupPlatform(d.Platform); ok && !p.Supported {
		d.Overrides = []string{OverridePlatform}
	}
	return d
}
