package simulator

import (
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/log"
)

var defaultBackend = New(Options{})

// Default returns the backend registered as the simulator job and node driver
func Default() *Backend {
	return defaultBackend
}

func init() {
	if err := job.Register(DriverName, defaultBackend); err != nil {
		log.Errorf("Failed to register job driver %s: %v", DriverName, err)
	}
	if err := node.Register(DriverName, defaultBackend.Nodes()); err != nil {
		log.Errorf("Failed to register node driver %s: %v", DriverName, err)
	}
}
