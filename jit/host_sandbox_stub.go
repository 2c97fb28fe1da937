//go:build !unicorn

package jit

import "github.com/colorfulnotion/tjit/log"

func newSandboxHost() (Host, error) {
	log.Error(log.HostMonitoring, "sandbox backend requires the unicorn build tag")
	return nil, ErrBackendUnavailable
}
