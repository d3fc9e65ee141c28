package upload

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/relabs-tech/air_monitor/internal/config"
	"github.com/relabs-tech/air_monitor/internal/report"
)

// Gateway submits one measurement record per cycle to the time-series
// database. Validate runs once at startup; a failure there is fatal, a
// Submit failure is only worth a log line.
type Gateway interface {
	Validate(ctx context.Context) error
	Submit(ctx context.Context, rec *report.Record) error
}

// Influx writes records to an InfluxDB 2.x bucket.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	device string
}

// NewInflux builds the gateway from the configured endpoint, token, org and
// bucket. device tags every written point.
func NewInflux(cfg *config.Config, device string) *Influx {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		device: device,
	}
}

// Validate performs the one-time reachability and health check of the remote
// endpoint.
func (i *Influx) Validate(ctx context.Context) error {
	health, err := i.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		return fmt.Errorf("influx health status %q", health.Status)
	}
	return nil
}

// Submit writes the record as a single point.
func (i *Influx) Submit(ctx context.Context, rec *report.Record) error {
	p := influxdb2.NewPointWithMeasurement(rec.Measurement()).
		AddTag("device", i.device).
		SetTime(time.Now())

	for name, value := range rec.Fields() {
		p = p.AddField(name, value)
	}

	if err := i.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close releases the underlying HTTP client.
func (i *Influx) Close() {
	i.client.Close()
}
