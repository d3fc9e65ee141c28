package config

import (
	"fmt"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/relabs-tech/air_monitor/internal/reading"
)

// Config holds all application configuration values. It is built once at
// startup and immutable afterwards; components receive it by pointer instead
// of reading ambient state.
type Config struct {
	// Capabilities
	HasPM   bool
	HasCO2  bool
	HasSHT  bool
	HasTVOC bool

	// Sensor hardware
	PMSerialPort  string
	CO2SerialPort string
	SHTI2CAddr    uint16
	TVOCI2CAddr   uint16

	// Display
	DisplayEnabled bool

	// Units preferences
	UseAQI        bool
	UseFahrenheit bool
	TempOffsetC   float64

	// Network
	NetworkEnabled        bool
	ConnectTimeoutSeconds int
	DeviceName            string
	Timezone              string

	// InfluxDB
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	Measurement  string

	// MQTT (optional live telemetry; disabled when broker is empty)
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// Diagnostic web viewer
	WebAddr string

	// Timing (milliseconds)
	ReadingDelay   int
	ReportInterval int
	RestartGrace   int
}

// defaults returns a Config pre-filled with the values a bare config file
// would leave in place.
func defaults() *Config {
	return &Config{
		SHTI2CAddr:     0x76,
		TVOCI2CAddr:    0x58,
		DisplayEnabled: true,

		ConnectTimeoutSeconds: 120,
		Timezone:              "UTC",
		Measurement:           "airquality",

		MQTTClientID: "air-monitor",
		MQTTTopic:    "air/quality",
		WebAddr:      ":8080",

		ReadingDelay:   3000,
		ReportInterval: 48000,
		RestartGrace:   5000,
	}
}

// Load reads a KEY=VALUE configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	pairs, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	for key, value := range pairs {
		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Capabilities
	case "HAS_PM":
		return parseBool(value, &c.HasPM)
	case "HAS_CO2":
		return parseBool(value, &c.HasCO2)
	case "HAS_SHT":
		return parseBool(value, &c.HasSHT)
	case "HAS_TVOC":
		return parseBool(value, &c.HasTVOC)

	// Sensor hardware
	case "PM_SERIAL_PORT":
		c.PMSerialPort = value
	case "CO2_SERIAL_PORT":
		c.CO2SerialPort = value
	case "SHT_I2C_ADDR":
		return parseI2CAddr(value, &c.SHTI2CAddr)
	case "TVOC_I2C_ADDR":
		return parseI2CAddr(value, &c.TVOCI2CAddr)

	// Display
	case "DISPLAY_ENABLED":
		return parseBool(value, &c.DisplayEnabled)

	// Units preferences
	case "USE_AQI":
		return parseBool(value, &c.UseAQI)
	case "USE_FAHRENHEIT":
		return parseBool(value, &c.UseFahrenheit)
	case "TEMP_OFFSET_C":
		offset, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMP_OFFSET_C %q: %w", value, err)
		}
		c.TempOffsetC = offset

	// Network
	case "NETWORK_ENABLED":
		return parseBool(value, &c.NetworkEnabled)
	case "CONNECT_TIMEOUT_SECONDS":
		return parsePositiveInt(value, &c.ConnectTimeoutSeconds)
	case "DEVICE_NAME":
		c.DeviceName = value
	case "TIMEZONE":
		c.Timezone = value

	// InfluxDB
	case "INFLUX_URL":
		c.InfluxURL = value
	case "INFLUX_TOKEN":
		c.InfluxToken = value
	case "INFLUX_ORG":
		c.InfluxOrg = value
	case "INFLUX_BUCKET":
		c.InfluxBucket = value
	case "MEASUREMENT":
		if value == "" {
			return fmt.Errorf("MEASUREMENT must not be empty")
		}
		c.Measurement = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value

	// Diagnostic web viewer
	case "WEB_ADDR":
		c.WebAddr = value

	// Timing
	case "READING_DELAY_MS":
		return parseNonNegativeInt(value, &c.ReadingDelay)
	case "REPORT_INTERVAL_MS":
		return parseNonNegativeInt(value, &c.ReportInterval)
	case "RESTART_GRACE_MS":
		return parseNonNegativeInt(value, &c.RestartGrace)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if !c.HasPM && !c.HasCO2 && !c.HasSHT && !c.HasTVOC {
		return fmt.Errorf("at least one of HAS_PM, HAS_CO2, HAS_SHT, HAS_TVOC must be enabled")
	}
	if c.HasPM && c.PMSerialPort == "" {
		return fmt.Errorf("PM_SERIAL_PORT is required when HAS_PM is enabled")
	}
	if c.HasCO2 && c.CO2SerialPort == "" {
		return fmt.Errorf("CO2_SERIAL_PORT is required when HAS_CO2 is enabled")
	}
	if c.NetworkEnabled {
		if c.InfluxURL == "" {
			return fmt.Errorf("INFLUX_URL is required when NETWORK_ENABLED is enabled")
		}
		if c.InfluxOrg == "" {
			return fmt.Errorf("INFLUX_ORG is required when NETWORK_ENABLED is enabled")
		}
		if c.InfluxBucket == "" {
			return fmt.Errorf("INFLUX_BUCKET is required when NETWORK_ENABLED is enabled")
		}
	}
	return nil
}

// ActiveCapabilities returns the enabled capabilities in the fixed cycle
// iteration order.
func (c *Config) ActiveCapabilities() []reading.Capability {
	var active []reading.Capability
	for _, cap := range reading.Order {
		switch cap {
		case reading.ParticulateMatter:
			if c.HasPM {
				active = append(active, cap)
			}
		case reading.CarbonDioxide:
			if c.HasCO2 {
				active = append(active, cap)
			}
		case reading.TemperatureHumidity:
			if c.HasSHT {
				active = append(active, cap)
			}
		case reading.VolatileOrganicCompounds:
			if c.HasTVOC {
				active = append(active, cap)
			}
		}
	}
	return active
}

func parseBool(value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", value, err)
	}
	*dst = b
	return nil
}

func parseI2CAddr(value string, dst *uint16) error {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid I2C address %q: %w", value, err)
	}
	*dst = uint16(addr)
	return nil
}

func parsePositiveInt(value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", value, err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	*dst = n
	return nil
}

func parseNonNegativeInt(value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", value, err)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	*dst = n
	return nil
}
