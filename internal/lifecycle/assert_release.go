// internal/lifecycle/assert_release.go

//go:build !framedebug

package lifecycle

const debugAssertions = false
