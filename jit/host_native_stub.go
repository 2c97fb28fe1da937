//go:build !(linux && amd64 && cgo)

package jit

import "github.com/colorfulnotion/tjit/log"

func newNativeHost() (Host, error) {
	log.Error(log.HostMonitoring, "native execution is not supported on this platform")
	return nil, ErrBackendUnavailable
}
