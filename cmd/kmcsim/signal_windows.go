//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals registers OS signal handlers so a run can raise its
// AbortSignal instead of dying uncleanly. Windows has no SIGTERM, so only
// os.Interrupt (Ctrl+C) is registered.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
