//go:build !linux

package main

// Plain JSON logs off Linux.
func isTerminal(fd uintptr) bool {
	return false
}
