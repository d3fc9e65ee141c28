package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/air_monitor/internal/config"
	"github.com/relabs-tech/air_monitor/internal/reading"
	"github.com/relabs-tech/air_monitor/internal/report"
	"github.com/relabs-tech/air_monitor/internal/sensors"
)

type renderCall struct {
	line1, line2 string
	small        bool
}

type fakeScreen struct {
	calls []renderCall
}

func (f *fakeScreen) Render(line1, line2 string, small bool) {
	f.calls = append(f.calls, renderCall{line1, line2, small})
}

func (f *fakeScreen) has(line1, line2 string) bool {
	for _, c := range f.calls {
		if c.line1 == line1 && c.line2 == line2 && !c.small {
			return true
		}
	}
	return false
}

// fakeDriver replays a fixed sequence of readings, repeating the last one.
// When cancelAfter reads have happened it cancels the context so Run stops
// at the next sleep checkpoint.
type fakeDriver struct {
	cap         reading.Capability
	raws        []reading.Raw
	readErr     error
	initErr     error
	reads       int
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeDriver) Capability() reading.Capability { return f.cap }

func (f *fakeDriver) Init() error { return f.initErr }

func (f *fakeDriver) Read() (reading.Raw, error) {
	i := f.reads
	f.reads++
	if f.cancel != nil && f.reads >= f.cancelAfter {
		f.cancel()
	}
	if f.readErr != nil {
		return reading.Raw{}, f.readErr
	}
	if i >= len(f.raws) {
		i = len(f.raws) - 1
	}
	return f.raws[i], nil
}

type fakeLink struct {
	err     error
	joins   int
	hint    string
	timeout time.Duration
}

func (f *fakeLink) Join(hint string, timeout time.Duration) error {
	f.joins++
	f.hint = hint
	f.timeout = timeout
	return f.err
}

// fakeGateway records submitted field sets and can cancel the context after
// a number of submissions.
type fakeGateway struct {
	validateErr error
	submitErr   error
	submits     []map[string]float64
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeGateway) Validate(ctx context.Context) error { return f.validateErr }

func (f *fakeGateway) Submit(ctx context.Context, rec *report.Record) error {
	f.submits = append(f.submits, rec.Fields())
	if f.cancel != nil && len(f.submits) >= f.cancelAfter {
		f.cancel()
	}
	return f.submitErr
}

// testConfig returns a networked config with zero delays so tests run at
// full speed.
func testConfig() *config.Config {
	return &config.Config{
		NetworkEnabled:        true,
		ConnectTimeoutSeconds: 1,
		Measurement:           "airquality",
		Timezone:              "UTC",
	}
}

func TestRunCO2SentinelExcludedButDisplayed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	screen := &fakeScreen{}
	gw := &fakeGateway{cancelAfter: 1, cancel: cancel}
	drv := &fakeDriver{
		cap:  reading.CarbonDioxide,
		raws: []reading.Raw{{Capability: reading.CarbonDioxide, CO2: -1}},
	}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{drv},
		Screen:  screen,
		Link:    &fakeLink{},
		Gateway: gw,
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(gw.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(gw.submits))
	}
	if _, ok := gw.submits[0]["co2"]; ok {
		t.Error("co2 sentinel reading reached the report")
	}
	if !screen.has("CO2", "-1") {
		t.Errorf("sentinel value -1 was not rendered; calls = %v", screen.calls)
	}
}

func TestRunEndToEndScenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.UseAQI = true
	cfg.UseFahrenheit = true

	screen := &fakeScreen{}
	gw := &fakeGateway{cancelAfter: 1, cancel: cancel}
	pm := &fakeDriver{
		cap:  reading.ParticulateMatter,
		raws: []reading.Raw{{Capability: reading.ParticulateMatter, PM02: 40}},
	}
	sht := &fakeDriver{
		cap:  reading.TemperatureHumidity,
		raws: []reading.Raw{{Capability: reading.TemperatureHumidity, TemperatureC: 20, RelativeHumidity: 45}},
	}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{pm, sht},
		Screen:  screen,
		Link:    &fakeLink{},
		Gateway: gw,
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(gw.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(gw.submits))
	}
	got := gw.submits[0]
	want := map[string]float64{"pm2": 40, "aqi": 111, "temp": 20, "rhum": 45}
	if len(got) != len(want) {
		t.Fatalf("record fields = %v, want %v", got, want)
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("field %s = %v, want %v", name, got[name], value)
		}
	}

	// Banner first, small face.
	if len(screen.calls) == 0 || !screen.calls[0].small {
		t.Errorf("startup banner missing or not small; calls = %v", screen.calls)
	}
	if !screen.has("AQI", "111") {
		t.Errorf("AQI render missing; calls = %v", screen.calls)
	}
	// 20°C with Fahrenheit preference renders as 68.
	if !screen.has("68", "45%") {
		t.Errorf("temperature render missing; calls = %v", screen.calls)
	}
}

func TestRunTempOffsetApplied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.TempOffsetC = -2

	gw := &fakeGateway{cancelAfter: 1, cancel: cancel}
	sht := &fakeDriver{
		cap:  reading.TemperatureHumidity,
		raws: []reading.Raw{{Capability: reading.TemperatureHumidity, TemperatureC: 22.5, RelativeHumidity: 50}},
	}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{sht},
		Screen:  &fakeScreen{},
		Link:    &fakeLink{},
		Gateway: gw,
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := gw.submits[0]["temp"]; got != 20.5 {
		t.Errorf("temp = %v, want 20.5 (offset applied)", got)
	}
}

func TestRunConnectivityTimeoutRequestsRestart(t *testing.T) {
	cfg := testConfig()
	link := &fakeLink{err: errors.New("no network")}
	gw := &fakeGateway{}
	drv := &fakeDriver{cap: reading.CarbonDioxide, raws: []reading.Raw{{Capability: reading.CarbonDioxide, CO2: 500}}}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{drv},
		Screen:  &fakeScreen{},
		Link:    link,
		Gateway: gw,
	})

	err := m.Run(context.Background())
	if !errors.Is(err, ErrRestartRequested) {
		t.Fatalf("Run() error = %v, want ErrRestartRequested", err)
	}
	if link.joins != 1 {
		t.Errorf("joins = %d, want exactly 1", link.joins)
	}
	if link.timeout != time.Second {
		t.Errorf("join timeout = %v, want 1s", link.timeout)
	}
	if len(gw.submits) != 0 {
		t.Errorf("submits = %d, want 0", len(gw.submits))
	}
}

func TestRunRemoteValidationFailureHalts(t *testing.T) {
	cfg := testConfig()
	gw := &fakeGateway{validateErr: errors.New("unauthorized")}
	drv := &fakeDriver{cap: reading.CarbonDioxide, raws: []reading.Raw{{Capability: reading.CarbonDioxide, CO2: 500}}}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{drv},
		Screen:  &fakeScreen{},
		Link:    &fakeLink{},
		Gateway: gw,
	})

	err := m.Run(context.Background())
	if !errors.Is(err, ErrRemoteValidation) {
		t.Fatalf("Run() error = %v, want ErrRemoteValidation", err)
	}
	if m.State() != Halted {
		t.Errorf("state = %v, want Halted", m.State())
	}
	if drv.reads != 0 {
		t.Errorf("driver reads = %d, want 0 (Sampling never entered)", drv.reads)
	}
	if len(gw.submits) != 0 {
		t.Errorf("submits = %d, want 0", len(gw.submits))
	}
}

func TestRunRecordIsCycleScoped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	gw := &fakeGateway{cancelAfter: 2, cancel: cancel}
	co2 := &fakeDriver{
		cap: reading.CarbonDioxide,
		raws: []reading.Raw{
			{Capability: reading.CarbonDioxide, CO2: 500},
			{Capability: reading.CarbonDioxide, CO2: -1},
		},
	}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{co2},
		Screen:  &fakeScreen{},
		Link:    &fakeLink{},
		Gateway: gw,
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(gw.submits) != 2 {
		t.Fatalf("submits = %d, want 2", len(gw.submits))
	}
	if gw.submits[0]["co2"] != 500 {
		t.Errorf("first cycle co2 = %v, want 500", gw.submits[0]["co2"])
	}
	// Second cycle had only the sentinel: the valid value from cycle one must
	// not linger.
	if len(gw.submits[1]) != 0 {
		t.Errorf("second cycle fields = %v, want empty", gw.submits[1])
	}
}

func TestRunSubmitFailureDoesNotStopTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	gw := &fakeGateway{submitErr: errors.New("server unavailable"), cancelAfter: 2, cancel: cancel}
	drv := &fakeDriver{cap: reading.CarbonDioxide, raws: []reading.Raw{{Capability: reading.CarbonDioxide, CO2: 500}}}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{drv},
		Screen:  &fakeScreen{},
		Link:    &fakeLink{},
		Gateway: gw,
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(gw.submits) != 2 {
		t.Errorf("submits = %d, want 2 (loop continued after failure)", len(gw.submits))
	}
}

func TestRunDriverErrorSkipsCapability(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	screen := &fakeScreen{}
	gw := &fakeGateway{cancelAfter: 1, cancel: cancel}
	pm := &fakeDriver{cap: reading.ParticulateMatter, readErr: errors.New("frame timeout")}
	sht := &fakeDriver{
		cap:  reading.TemperatureHumidity,
		raws: []reading.Raw{{Capability: reading.TemperatureHumidity, TemperatureC: 21, RelativeHumidity: 40}},
	}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{pm, sht},
		Screen:  screen,
		Link:    &fakeLink{},
		Gateway: gw,
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	got := gw.submits[0]
	if _, ok := got["pm2"]; ok {
		t.Error("failed pm read produced a pm2 field")
	}
	if got["temp"] != 21 || got["rhum"] != 40 {
		t.Errorf("sht fields = %v, want temp=21 rhum=40", got)
	}
	// The failed capability renders nothing: banner plus one sht render.
	if len(screen.calls) != 2 {
		t.Errorf("render calls = %d, want 2 (banner + sht); calls = %v", len(screen.calls), screen.calls)
	}
}

func TestRunOfflineSkipsNetwork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.NetworkEnabled = false

	link := &fakeLink{}
	var published [][]byte
	drv := &fakeDriver{
		cap:         reading.CarbonDioxide,
		raws:        []reading.Raw{{Capability: reading.CarbonDioxide, CO2: 450}},
		cancelAfter: 2,
		cancel:      cancel,
	}

	m := NewMonitor(cfg, "airmon-test", Deps{
		Drivers: []sensors.Driver{drv},
		Screen:  &fakeScreen{},
		Link:    link,
		Publish: func(payload []byte) error {
			published = append(published, payload)
			return nil
		},
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if link.joins != 0 {
		t.Errorf("joins = %d, want 0 when networking is disabled", link.joins)
	}
	if len(published) == 0 {
		t.Fatal("no telemetry published")
	}

	var tel Telemetry
	if err := json.Unmarshal(published[0], &tel); err != nil {
		t.Fatalf("telemetry unmarshal: %v", err)
	}
	if tel.Measurement != "airquality" || tel.Device != "airmon-test" {
		t.Errorf("telemetry = %+v", tel)
	}
	if tel.Fields["co2"] != 450 {
		t.Errorf("telemetry co2 = %v, want 450", tel.Fields["co2"])
	}
}
