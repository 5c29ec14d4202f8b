package state

import (
	"fmt"

	"github.com/google/uuid"
)

// Probe is the payload of a discovery packet sent out of Port on Chassis.
// Token ties a received probe back to the one we sent.
type Probe struct {
	Chassis SwitchId
	Port    Port
	Token   uuid.UUID
}

func NewProbe(chassis SwitchId, port Port) Probe {
	return Probe{
		Chassis: chassis,
		Port:    port,
		Token:   uuid.New(),
	}
}

func (p Probe) String() string {
	return fmt.Sprintf("probe %s:%d (%s)", p.Chassis, p.Port, p.Token)
}
