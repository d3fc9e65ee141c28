// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/air_monitor/internal/config"
	"github.com/relabs-tech/air_monitor/internal/reading"
)

// Driver is one sensor collaborator. Init is called once during boot; Read
// performs a single blocking acquisition. Drivers do not retry: transient
// failures surface as an error (or, for the S8, as its negative CO2
// sentinel) and are dealt with by the caller.
type Driver interface {
	Capability() reading.Capability
	Init() error
	Read() (reading.Raw, error)
}

// Open returns the driver for one capability, configured but not yet
// initialized.
func Open(cap reading.Capability, cfg *config.Config) (Driver, error) {
	switch cap {
	case reading.ParticulateMatter:
		return NewPMS5003(cfg.PMSerialPort), nil
	case reading.CarbonDioxide:
		return NewSenseAirS8(cfg.CO2SerialPort), nil
	case reading.TemperatureHumidity:
		return NewBME280(cfg.SHTI2CAddr), nil
	case reading.VolatileOrganicCompounds:
		return NewSGP30(cfg.TVOCI2CAddr), nil
	default:
		return nil, fmt.Errorf("no driver for capability %v", cap)
	}
}
