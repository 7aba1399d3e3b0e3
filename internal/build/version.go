// Package build carries values stamped in at link time.
package build

// Version is overridden with -ldflags "-X github.com/HardCoreQual/pdf2png/internal/build.Version=v1.2.3"
var Version = "dev"
