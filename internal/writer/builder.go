// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/lnictl/internal/config"
	rmodbus "github.com/tamzrod/lnictl/internal/regbus/modbus"
)

// BuildPlan converts one port config into a Writer Plan.
// Assumes config has already passed validation.
func BuildPlan(p cfg.PortConfig, sm *cfg.StatusMemoryConfig) (Plan, error) {
	if p.ID == "" {
		return Plan{}, errors.New("writer: port.id required")
	}

	plan := Plan{PortID: p.ID}

	if p.StatusSlot != nil && sm != nil {
		plan.Status = &StatusPlan{
			Endpoint:   sm.Endpoint,
			UnitID:     sm.UnitID,
			BaseSlot:   *p.StatusSlot,
			DeviceName: p.DeviceName,
		}
	}

	return plan, nil
}

// BuildEndpointClients creates the status memory client, if configured.
// All ports share it.
func BuildEndpointClients(sm *cfg.StatusMemoryConfig) (EndpointClients, func() error, error) {
	clients := make(EndpointClients)
	if sm == nil {
		return clients, func() error { return nil }, nil
	}

	c, err := rmodbus.New(rmodbus.Config{
		Endpoint: sm.Endpoint,
		UnitID:   sm.UnitID,
		Timeout:  time.Duration(sm.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}
	clients[sm.Endpoint] = c

	return clients, c.Close, nil
}
