// Package shrinkherd holds metadata shared by the binary and its packages.
package shrinkherd

// Version is the current shrinkherd release.
const Version = "0.3.0"
