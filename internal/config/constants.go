package config

// Application constants
const (
	AppName   = "geodash"
	AppVendor = "geodash contributors"

	// DefaultConfigFile is looked up in the working directory and configs/.
	DefaultConfigFile = "geodash.yaml"
)
