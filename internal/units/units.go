// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package units

// aqiBand is one EPA breakpoint band mapping a PM2.5 concentration range to
// an AQI range. Upper bounds are inclusive.
type aqiBand struct {
	lowBP, highBP   float64
	lowAQI, highAQI float64
}

// US EPA PM2.5 breakpoints.
var aqiBands = []aqiBand{
	{0, 12.0, 0, 50},
	{12.0, 35.4, 50, 100},
	{35.4, 55.4, 100, 150},
	{55.4, 150.4, 150, 200},
	{150.4, 250.4, 200, 300},
	{250.4, 350.4, 300, 400},
	{350.4, 500.4, 400, 500},
}

// MassConcentrationToAQI converts a PM2.5 mass concentration (µg/m³) to the
// US Air Quality Index. Linear interpolation within the band, truncated to an
// integer. Concentrations above 500.4 clamp to 500. A value sitting exactly
// on a band boundary belongs to the lower band.
func MassConcentrationToAQI(pm02 int) int {
	c := float64(pm02)
	for _, b := range aqiBands {
		if c <= b.highBP {
			return int(b.lowAQI + (b.highAQI-b.lowAQI)/(b.highBP-b.lowBP)*(c-b.lowBP))
		}
	}
	return 500
}

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
