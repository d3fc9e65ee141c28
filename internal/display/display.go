// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// Renderer shows two short text lines. Rendering never fails upward: display
// trouble must not disturb the sampling loop.
type Renderer interface {
	// Render clears the screen and draws both lines. small selects the denser
	// 7x13 face (used for the startup banner); the default face is 8x16 bold.
	Render(line1, line2 string, small bool)
}

// Screen drives an SSD1306 128x64 OLED on the default I2C bus.
type Screen struct {
	dev *ssd1306.Dev
}

// New initializes the display on the default I2C bus.
func New() (*Screen, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display: device init: %w", err)
	}
	log.Println("display: initialized")

	return &Screen{dev: dev}, nil
}

func (s *Screen) Render(line1, line2 string, small bool) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := range img.Pix {
		img.Pix[i] = 0
	}

	var face font.Face = inconsolata.Bold8x16
	y1, y2 := 24, 48
	if small {
		face = basicfont.Face7x13
		y1, y2 = 26, 43
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: face,
	}

	drawer.Dot = fixed.P(0, y1)
	drawer.DrawString(line1)
	drawer.Dot = fixed.P(0, y2)
	drawer.DrawString(line2)

	if err := s.dev.Draw(s.dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: draw error: %v", err)
	}
}

// PowerOff blanks and halts the panel.
func (s *Screen) PowerOff() {
	if err := s.dev.Halt(); err != nil {
		log.Printf("display: halt error: %v", err)
	}
}

// Nop is the renderer used when the display is disabled by configuration.
type Nop struct{}

func (Nop) Render(line1, line2 string, small bool) {}
