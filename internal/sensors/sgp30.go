// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/air_monitor/internal/reading"
)

// SGP30 command words.
var (
	sgpInitAirQuality    = []byte{0x20, 0x03}
	sgpMeasureAirQuality = []byte{0x20, 0x08}
)

// SGP30 reads total VOC from a Sensirion SGP30 using raw I2C commands. The
// sensor answers a measurement command with two words (CO2eq, TVOC), each
// followed by a CRC-8 byte.
type SGP30 struct {
	addr uint16
	dev  *i2c.Dev
}

func NewSGP30(addr uint16) *SGP30 {
	return &SGP30{addr: addr}
}

func (s *SGP30) Capability() reading.Capability {
	return reading.VolatileOrganicCompounds
}

func (s *SGP30) Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("sgp30: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("sgp30: open I2C bus: %w", err)
	}
	s.dev = &i2c.Dev{Bus: bus, Addr: s.addr}

	if err := s.dev.Tx(sgpInitAirQuality, nil); err != nil {
		return fmt.Errorf("sgp30: init air quality: %w", err)
	}
	// Datasheet: 10 ms max command duration.
	time.Sleep(10 * time.Millisecond)
	return nil
}

func (s *SGP30) Read() (reading.Raw, error) {
	if s.dev == nil {
		return reading.Raw{}, fmt.Errorf("sgp30: not initialized")
	}

	if err := s.dev.Tx(sgpMeasureAirQuality, nil); err != nil {
		return reading.Raw{}, fmt.Errorf("sgp30: measure command: %w", err)
	}
	// The measurement takes up to 12 ms before the result can be clocked out.
	time.Sleep(12 * time.Millisecond)

	resp := make([]byte, 6)
	if err := s.dev.Tx(nil, resp); err != nil {
		return reading.Raw{}, fmt.Errorf("sgp30: read result: %w", err)
	}

	tvoc, err := parseSGPWord(resp[3:6])
	if err != nil {
		return reading.Raw{}, fmt.Errorf("sgp30: tvoc word: %w", err)
	}

	return reading.Raw{Capability: reading.VolatileOrganicCompounds, TVOCIndex: int(tvoc)}, nil
}

// parseSGPWord decodes one big-endian sensor word followed by its CRC byte.
func parseSGPWord(b []byte) (uint16, error) {
	if len(b) != 3 {
		return 0, fmt.Errorf("short word: %d bytes", len(b))
	}
	if crc := sgpCRC8(b[:2]); crc != b[2] {
		return 0, fmt.Errorf("crc mismatch: got %#02x, want %#02x", b[2], crc)
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// sgpCRC8 is the Sensirion CRC-8: polynomial 0x31, init 0xFF.
func sgpCRC8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
