package pipeline

import "github.com/nao1215/authprobe/internal/protocol"

// ServiceSpec describes one probed service. Specs are built once from
// configuration and never modified.
type ServiceSpec struct {
	// Name is the display name used in reports (e.g., "MongoDB").
	Name string

	// Port is the TCP port to probe.
	Port uint16

	// Driver classifies the service once the port is known to be open.
	Driver protocol.Driver
}

// NewServiceSpec builds a spec named after the driver. A zero port selects
// the driver's default port.
func NewServiceSpec(driver protocol.Driver, port uint16) ServiceSpec {
	if port == 0 {
		port = driver.DefaultPort()
	}
	return ServiceSpec{
		Name:   driver.Name(),
		Port:   port,
		Driver: driver,
	}
}
