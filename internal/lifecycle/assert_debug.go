// internal/lifecycle/assert_debug.go

//go:build framedebug

package lifecycle

const debugAssertions = true
