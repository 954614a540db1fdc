//go:build !unix

package session

// processAlive cannot probe processes here, so every recorder counts as live.
func processAlive(pid int) bool { return true }
