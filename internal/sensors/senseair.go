// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/air_monitor/internal/reading"
)

// s8ReadCmd asks the SenseAir S8 for its CO2 concentration register
// (Modbus "read input registers" any-address form, fixed CRC).
var s8ReadCmd = []byte{0xFE, 0x44, 0x00, 0x08, 0x02, 0x9F, 0x25}

// SenseAirS8 polls the SenseAir S8 NDIR CO2 sensor over UART. A malformed
// response yields the -1 sentinel rather than an error; that mirrors the
// sensor's own error signalling and lets the operator see the failure on the
// display.
type SenseAirS8 struct {
	portName string
	port     io.ReadWriteCloser
}

func NewSenseAirS8(portName string) *SenseAirS8 {
	return &SenseAirS8{portName: portName}
}

func (s *SenseAirS8) Capability() reading.Capability {
	return reading.CarbonDioxide
}

func (s *SenseAirS8) Init() error {
	opts := serial.OpenOptions{
		PortName:        s.portName,
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("senseair s8: open %s: %w", s.portName, err)
	}
	s.port = port
	return nil
}

func (s *SenseAirS8) Read() (reading.Raw, error) {
	if s.port == nil {
		return reading.Raw{}, fmt.Errorf("senseair s8: not initialized")
	}

	if _, err := s.port.Write(s8ReadCmd); err != nil {
		return reading.Raw{}, fmt.Errorf("senseair s8: write command: %w", err)
	}

	resp := make([]byte, 7)
	if _, err := io.ReadFull(s.port, resp); err != nil {
		return reading.Raw{}, fmt.Errorf("senseair s8: read response: %w", err)
	}

	return reading.Raw{Capability: reading.CarbonDioxide, CO2: parseS8Response(resp)}, nil
}

// parseS8Response extracts the CO2 ppm value from a 7-byte S8 response, or
// -1 when the response does not echo the command header.
func parseS8Response(resp []byte) int {
	if len(resp) != 7 || resp[0] != 0xFE || resp[1] != 0x44 {
		return -1
	}
	return int(resp[3])<<8 | int(resp[4])
}
