// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/air_monitor/internal/reading"
)

const (
	pmsFrameLen   = 32
	pmsStartByte1 = 0x42
	pmsStartByte2 = 0x4D
)

// PMS5003 reads the Plantower PMS5003 particulate sensor over UART. The
// sensor pushes a fixed 32-byte binary frame continuously; Read synchronizes
// on the start bytes and returns the atmospheric PM2.5 value of the next
// complete frame.
type PMS5003 struct {
	portName string
	port     io.ReadCloser
	reader   *bufio.Reader
}

func NewPMS5003(portName string) *PMS5003 {
	return &PMS5003{portName: portName}
}

func (p *PMS5003) Capability() reading.Capability {
	return reading.ParticulateMatter
}

func (p *PMS5003) Init() error {
	opts := serial.OpenOptions{
		PortName:        p.portName,
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("pms5003: open %s: %w", p.portName, err)
	}
	p.port = port
	p.reader = bufio.NewReader(port)
	return nil
}

func (p *PMS5003) Read() (reading.Raw, error) {
	if p.reader == nil {
		return reading.Raw{}, fmt.Errorf("pms5003: not initialized")
	}

	frame := make([]byte, pmsFrameLen)
	// Synchronize on the 0x42 0x4D frame header, then pull in the rest.
	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			return reading.Raw{}, fmt.Errorf("pms5003: read: %w", err)
		}
		if b != pmsStartByte1 {
			continue
		}
		b, err = p.reader.ReadByte()
		if err != nil {
			return reading.Raw{}, fmt.Errorf("pms5003: read: %w", err)
		}
		if b != pmsStartByte2 {
			continue
		}
		break
	}

	frame[0] = pmsStartByte1
	frame[1] = pmsStartByte2
	if _, err := io.ReadFull(p.reader, frame[2:]); err != nil {
		return reading.Raw{}, fmt.Errorf("pms5003: read frame: %w", err)
	}

	pm25, err := parsePMSFrame(frame)
	if err != nil {
		return reading.Raw{}, fmt.Errorf("pms5003: %w", err)
	}

	return reading.Raw{Capability: reading.ParticulateMatter, PM02: pm25}, nil
}

// parsePMSFrame validates a complete 32-byte PMS5003 frame and extracts the
// atmospheric-environment PM2.5 concentration (data word 5, bytes 12-13).
func parsePMSFrame(frame []byte) (int, error) {
	if len(frame) != pmsFrameLen {
		return 0, fmt.Errorf("short frame: %d bytes", len(frame))
	}
	if frame[0] != pmsStartByte1 || frame[1] != pmsStartByte2 {
		return 0, fmt.Errorf("bad frame header % X", frame[:2])
	}

	frameLen := int(frame[2])<<8 | int(frame[3])
	if frameLen != pmsFrameLen-4 {
		return 0, fmt.Errorf("unexpected frame length %d", frameLen)
	}

	// Checksum is the byte sum of everything before the last word.
	var sum uint16
	for _, b := range frame[:pmsFrameLen-2] {
		sum += uint16(b)
	}
	checksum := uint16(frame[30])<<8 | uint16(frame[31])
	if sum != checksum {
		return 0, fmt.Errorf("checksum mismatch: got %#04x, want %#04x", sum, checksum)
	}

	return int(frame[12])<<8 | int(frame[13]), nil
}
