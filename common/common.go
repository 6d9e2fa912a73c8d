// Package common holds process-wide helpers shared by the binaries.
package common

const PackageName = "dexcom_browser_source"

// Version is set at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"
