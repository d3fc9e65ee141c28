package reading

// Capability identifies one of the sensor slots the monitor can be built
// with. The iteration order of a sampling cycle is the order of these
// constants.
type Capability int

const (
	ParticulateMatter Capability = iota
	CarbonDioxide
	TemperatureHumidity
	VolatileOrganicCompounds
)

// Order is the fixed per-cycle iteration order.
var Order = []Capability{
	ParticulateMatter,
	CarbonDioxide,
	TemperatureHumidity,
	VolatileOrganicCompounds,
}

func (c Capability) String() string {
	switch c {
	case ParticulateMatter:
		return "pm"
	case CarbonDioxide:
		return "co2"
	case TemperatureHumidity:
		return "sht"
	case VolatileOrganicCompounds:
		return "tvoc"
	default:
		return "unknown"
	}
}

// Raw is one raw sensor acquisition. Only the fields matching Capability are
// meaningful; the rest stay zero.
type Raw struct {
	Capability Capability

	PM02             int     // µg/m³, ParticulateMatter
	CO2              int     // ppm, CarbonDioxide (≤0 is the driver error sentinel)
	TemperatureC     float64 // °C, TemperatureHumidity
	RelativeHumidity float64 // %rH, TemperatureHumidity
	TVOCIndex        int     // ppb, VolatileOrganicCompounds
}

// Validity classifies a raw acquisition. Invalid readings are still shown on
// the display but must never reach the report.
type Validity struct {
	Valid  bool
	Reason string
}

// Classify applies the per-capability validity rule. Only CO2 has a driver
// sentinel (≤0 means the sensor reported a read failure); every other
// capability trusts the driver output as-is.
func Classify(r Raw) Validity {
	if r.Capability == CarbonDioxide && r.CO2 <= 0 {
		return Validity{Valid: false, Reason: "co2 sensor error sentinel"}
	}
	return Validity{Valid: true}
}
