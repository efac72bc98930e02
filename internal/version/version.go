// Package version provides build and version information for Sentient Narrative.
package version

// Version is the current release version. Override at build time with:
//
//	go build -ldflags "-X github.com/AaronLay10/SentientNarrative/internal/version.Version=x.y.z"
var Version = "0.3.0"
