// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/air_monitor/internal/config"
	"github.com/relabs-tech/air_monitor/internal/display"
	"github.com/relabs-tech/air_monitor/internal/netlink"
	"github.com/relabs-tech/air_monitor/internal/reading"
	"github.com/relabs-tech/air_monitor/internal/report"
	"github.com/relabs-tech/air_monitor/internal/sensors"
	"github.com/relabs-tech/air_monitor/internal/units"
	"github.com/relabs-tech/air_monitor/internal/upload"
)

// State is the scheduler's current phase.
type State int

const (
	Booting State = iota
	AwaitingConnectivity
	Sampling
	Reporting
	Sleeping
	Halted
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case AwaitingConnectivity:
		return "awaiting-connectivity"
	case Sampling:
		return "sampling"
	case Reporting:
		return "reporting"
	case Sleeping:
		return "sleeping"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

var (
	// ErrRestartRequested means connectivity could not be established within
	// the startup window. The supervisor is expected to restart the process.
	ErrRestartRequested = errors.New("connectivity timeout, restart requested")

	// ErrRemoteValidation means the upload endpoint rejected the one-time
	// startup check. The device halts permanently; restarting would not help.
	ErrRemoteValidation = errors.New("remote endpoint validation failed")
)

// Telemetry is the per-cycle record published to MQTT for live viewers.
type Telemetry struct {
	Device      string             `json:"device"`
	Measurement string             `json:"measurement"`
	Fields      map[string]float64 `json:"fields"`
	Time        time.Time          `json:"time"`
}

// Deps are the monitor's external collaborators. Tests inject fakes;
// RunMonitor wires the real hardware.
type Deps struct {
	Drivers []sensors.Driver
	Screen  display.Renderer
	Link    netlink.Link
	Gateway upload.Gateway
	Publish func(payload []byte) error // nil when live telemetry is disabled
}

// Monitor is the device's entire runtime after setup: one cooperative loop
// that samples each sensor, drives the display, accumulates a report and
// submits it, forever.
type Monitor struct {
	cfg      *config.Config
	deps     Deps
	deviceID string

	readingDelay   time.Duration
	reportInterval time.Duration
	restartGrace   time.Duration

	record *report.Record
	state  State
	loc    *time.Location
}

func NewMonitor(cfg *config.Config, deviceID string, deps Deps) *Monitor {
	return &Monitor{
		cfg:            cfg,
		deps:           deps,
		deviceID:       deviceID,
		readingDelay:   time.Duration(cfg.ReadingDelay) * time.Millisecond,
		reportInterval: time.Duration(cfg.ReportInterval) * time.Millisecond,
		restartGrace:   time.Duration(cfg.RestartGrace) * time.Millisecond,
		record:         report.New(cfg.Measurement),
		loc:            time.UTC,
	}
}

// State returns the scheduler phase last entered.
func (m *Monitor) State() State {
	return m.state
}

// Run executes the startup sequence and then the sampling loop. It returns
// only on a fatal startup failure or when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.state = Booting
	m.deps.Screen.Render("Air Monitor", m.deviceID, true)

	for _, d := range m.deps.Drivers {
		if err := d.Init(); err != nil {
			log.Printf("%s: init failed, readings will be skipped: %v", d.Capability(), err)
		}
	}

	if m.cfg.NetworkEnabled {
		m.state = AwaitingConnectivity
		timeout := time.Duration(m.cfg.ConnectTimeoutSeconds) * time.Second
		if err := m.deps.Link.Join(m.deviceID, timeout); err != nil {
			log.Printf("connectivity failed: %v", err)
			m.sleepFor(ctx, m.restartGrace)
			return ErrRestartRequested
		}

		m.syncTime()

		if err := m.deps.Gateway.Validate(ctx); err != nil {
			log.Printf("remote validation failed: %v", err)
			m.state = Halted
			return fmt.Errorf("%w: %v", ErrRemoteValidation, err)
		}
		log.Println("remote endpoint validated")
	}

	for {
		m.state = Sampling
		m.record.BeginCycle()

		for _, d := range m.deps.Drivers {
			m.sample(d)
			if !m.sleepFor(ctx, m.readingDelay) {
				return ctx.Err()
			}
		}

		m.state = Reporting
		m.report(ctx)

		m.state = Sleeping
		if !m.sleepFor(ctx, m.reportInterval) {
			return ctx.Err()
		}
	}
}

// syncTime loads the configured timezone. A bad zone is not worth halting
// the device over; it just means UTC timestamps in the log.
func (m *Monitor) syncTime() {
	loc, err := time.LoadLocation(m.cfg.Timezone)
	if err != nil {
		log.Printf("timezone %q not usable, staying on UTC: %v", m.cfg.Timezone, err)
		return
	}
	m.loc = loc
	log.Printf("time synchronized, local time %s", time.Now().In(loc).Format(time.RFC3339))
}

// sample acquires one reading from a driver, converts it, accumulates the
// valid fields and renders the result. Driver errors stay inside this stage.
func (m *Monitor) sample(d sensors.Driver) {
	raw, err := d.Read()
	if err != nil {
		log.Printf("%s: read error: %v", d.Capability(), err)
		return
	}

	validity := reading.Classify(raw)

	switch raw.Capability {
	case reading.ParticulateMatter:
		if validity.Valid {
			m.record.AddField("pm2", float64(raw.PM02))
			if m.cfg.UseAQI {
				m.record.AddField("aqi", float64(units.MassConcentrationToAQI(raw.PM02)))
			}
		}
		if m.cfg.UseAQI {
			m.deps.Screen.Render("AQI", strconv.Itoa(units.MassConcentrationToAQI(raw.PM02)), false)
		} else {
			m.deps.Screen.Render("PM2", strconv.Itoa(raw.PM02), false)
		}

	case reading.CarbonDioxide:
		if validity.Valid {
			m.record.AddField("co2", float64(raw.CO2))
		} else {
			log.Printf("co2: reading %d dropped from report: %s", raw.CO2, validity.Reason)
		}
		// The sentinel value is still shown so the operator sees the fault.
		m.deps.Screen.Render("CO2", strconv.Itoa(raw.CO2), false)

	case reading.TemperatureHumidity:
		temp := raw.TemperatureC + m.cfg.TempOffsetC
		if validity.Valid {
			m.record.AddField("temp", temp)
			m.record.AddField("rhum", raw.RelativeHumidity)
		}
		line1 := formatValue(temp)
		if m.cfg.UseFahrenheit {
			line1 = formatValue(units.CelsiusToFahrenheit(temp))
		}
		m.deps.Screen.Render(line1, formatValue(raw.RelativeHumidity)+"%", false)

	case reading.VolatileOrganicCompounds:
		if validity.Valid {
			m.record.AddField("tvoc", float64(raw.TVOCIndex))
		}
		m.deps.Screen.Render("TVOC", strconv.Itoa(raw.TVOCIndex), false)
	}
}

// report submits the accumulated record and, when enabled, publishes it for
// live viewers. Neither path may disturb the cycle.
func (m *Monitor) report(ctx context.Context) {
	if m.cfg.NetworkEnabled {
		if err := m.deps.Gateway.Submit(ctx, m.record); err != nil {
			log.Printf("upload failed, skipping this cycle: %v", err)
		} else {
			log.Printf("uploaded %s", m.record.Serialize())
		}
	} else {
		log.Printf("report (offline) %s", m.record.Serialize())
	}

	if m.deps.Publish == nil {
		return
	}
	payload, err := json.Marshal(Telemetry{
		Device:      m.deviceID,
		Measurement: m.record.Measurement(),
		Fields:      m.record.Fields(),
		Time:        time.Now().In(m.loc),
	})
	if err != nil {
		log.Printf("telemetry marshal error: %v", err)
		return
	}
	if err := m.deps.Publish(payload); err != nil {
		log.Printf("telemetry publish error: %v", err)
	}
}

// sleepFor blocks for d unless ctx is cancelled first. It reports whether
// the loop should keep running.
func (m *Monitor) sleepFor(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RunMonitor wires the real hardware collaborators and runs the monitor
// until a fatal startup failure or external cancellation.
func RunMonitor(ctx context.Context, cfg *config.Config) error {
	deviceID := netlink.DeviceID(cfg.DeviceName)
	log.Printf("air monitor %q starting", deviceID)

	var screen display.Renderer = display.Nop{}
	if cfg.DisplayEnabled {
		scr, err := display.New()
		if err != nil {
			log.Printf("display unavailable, continuing without: %v", err)
		} else {
			screen = scr
		}
	} else if scr, err := display.New(); err == nil {
		// Display disabled by configuration: make sure the panel stays dark.
		scr.PowerOff()
	}

	var drivers []sensors.Driver
	for _, cap := range cfg.ActiveCapabilities() {
		d, err := sensors.Open(cap, cfg)
		if err != nil {
			return err
		}
		drivers = append(drivers, d)
	}

	var gateway upload.Gateway
	var link netlink.Link
	if cfg.NetworkEnabled {
		addr, err := netlink.ProbeAddr(cfg.InfluxURL)
		if err != nil {
			return err
		}
		link = &netlink.Probe{Addr: addr}

		influx := upload.NewInflux(cfg, deviceID)
		defer influx.Close()
		gateway = influx
	}

	var publish func([]byte) error
	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientID)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("MQTT connect error, live telemetry disabled: %v", token.Error())
		} else {
			defer client.Disconnect(250)
			log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)
			topic := cfg.MQTTTopic
			publish = func(payload []byte) error {
				token := client.Publish(topic, 0, true, payload)
				token.Wait()
				return token.Error()
			}
		}
	}

	m := NewMonitor(cfg, deviceID, Deps{
		Drivers: drivers,
		Screen:  screen,
		Link:    link,
		Gateway: gateway,
		Publish: publish,
	})
	return m.Run(ctx)
}
