package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/air_monitor/internal/reading"
)

// BME280 reads temperature and relative humidity from a Bosch BME280 on the
// default I2C bus.
type BME280 struct {
	addr uint16
	dev  *bmxx80.Dev
}

func NewBME280(addr uint16) *BME280 {
	return &BME280{addr: addr}
}

func (b *BME280) Capability() reading.Capability {
	return reading.TemperatureHumidity
}

func (b *BME280) Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("bme280: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("bme280: open I2C bus: %w", err)
	}

	dev, err := bmxx80.NewI2C(bus, b.addr, &bmxx80.DefaultOpts)
	if err != nil {
		return fmt.Errorf("bme280: device init at 0x%02X: %w", b.addr, err)
	}
	b.dev = dev
	return nil
}

func (b *BME280) Read() (reading.Raw, error) {
	if b.dev == nil {
		return reading.Raw{}, fmt.Errorf("bme280: not initialized")
	}

	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return reading.Raw{}, fmt.Errorf("bme280: sense: %w", err)
	}

	// env.Humidity is fixed point at a precision of 0.00001%rH.
	return reading.Raw{
		Capability:       reading.TemperatureHumidity,
		TemperatureC:     e.Temperature.Celsius(),
		RelativeHumidity: float64(e.Humidity) / 100000.0,
	}, nil
}
