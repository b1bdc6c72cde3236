package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// InfluxSink writes controller events to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback returns a NopSink when the instance fails its
// health check.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTick writes a charging_tick point.
func (s *InfluxSink) RecordTick(ev coremetrics.TickEvent) error {
	p := write.NewPointWithMeasurement("charging_tick").
		AddTag("state", ev.State).
		AddTag("price_label", ev.PriceLabel).
		AddTag("plugged", strconv.FormatBool(ev.Plugged)).
		AddField("soc", round3(ev.SoC)).
		AddField("sensor_soc", round3(ev.SensorSoC)).
		AddField("target_soc", round3(ev.TargetSoC)).
		AddField("safe_current_a", round3(ev.SafeCurrentA)).
		AddField("price", round3(ev.Price)).
		AddField("should_charge", ev.ShouldCharge).
		AddField("required_slots", ev.RequiredSlots).
		AddField("overload_min", round3(ev.OverloadMin)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordActuation writes a charger_command point.
func (s *InfluxSink) RecordActuation(ev coremetrics.ActuationEvent) error {
	p := write.NewPointWithMeasurement("charger_command").
		AddTag("command", ev.Command).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSession writes a charging_session point.
func (s *InfluxSink) RecordSession(ev coremetrics.SessionEvent) error {
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("session_id", ev.SessionID).
		AddTag("currency", ev.Currency).
		AddField("duration_min", round3(ev.Duration.Minutes())).
		AddField("start_soc", round3(ev.StartSoC)).
		AddField("end_soc", round3(ev.EndSoC)).
		AddField("added_kwh", round3(ev.AddedKWh)).
		AddField("cost", round3(ev.Cost)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordLearning writes an efficiency_learning point.
func (s *InfluxSink) RecordLearning(ev coremetrics.LearningEvent) error {
	p := write.NewPointWithMeasurement("efficiency_learning").
		AddTag("outcome", ev.Outcome).
		AddField("error", round3(ev.Error)).
		AddField("loss_pct", round3(ev.LossPct)).
		AddField("confidence", ev.Confidence).
		AddField("locked", ev.Locked).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
