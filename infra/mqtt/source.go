package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// ErrNoData is returned by Snapshot until the plug state has been received.
var ErrNoData = errors.New("no sensor data received yet")

// SensorSource keeps the latest value of every subscribed state topic and
// assembles them into a snapshot on demand.
type SensorSource struct {
	topics Topics
	log    logger.Logger

	mu       sync.RWMutex
	values   map[string]float64
	plugged  *bool
	prices   model.PriceCurve
	calendar []model.CalendarEvent
}

// NewSensorSource subscribes to every mapped state topic.
func NewSensorSource(c *Client, topics Topics) (*SensorSource, error) {
	s := &SensorSource{
		topics: topics,
		log:    logger.New("mqtt_source"),
		values: make(map[string]float64),
	}
	for _, t := range topics.stateTopics() {
		if err := c.Subscribe(t, s.onMessage); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *SensorSource) onMessage(_ paho.Client, msg paho.Message) {
	s.Handle(msg.Topic(), msg.Payload())
}

// Handle stores one state message.
func (s *SensorSource) Handle(topic string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch topic {
	case s.topics.Plugged:
		p := model.ParsePlugged(string(payload))
		s.plugged = &p
	case s.topics.Prices:
		var c model.PriceCurve
		if err := json.Unmarshal(payload, &c); err != nil {
			s.log.Warnf("invalid price payload on %s: %v", topic, err)
			return
		}
		s.prices = c
	case s.topics.Calendar:
		var ev []model.CalendarEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Warnf("invalid calendar payload on %s: %v", topic, err)
			return
		}
		s.calendar = ev
	default:
		s.values[topic] = parseState(string(payload))
	}
}

// parseState reads a numeric entity state. Unavailable or non-numeric states
// read as zero.
func parseState(state string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
	if err != nil {
		return 0
	}
	return f
}

// Snapshot returns the latest readings.
func (s *SensorSource) Snapshot(_ context.Context) (model.SensorSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plugged == nil {
		return model.SensorSnapshot{}, ErrNoData
	}
	snap := model.SensorSnapshot{
		CarSoC:  s.values[s.topics.CarSoC],
		Plugged: *s.plugged,
		Prices:  s.prices,
	}
	for i := 0; i < model.Phases; i++ {
		if t := s.topics.Household[i]; t != "" {
			snap.Household[i] = s.values[t]
		}
		if t := s.topics.Charger[i]; t != "" {
			snap.Charger[i] = s.values[t]
		}
	}
	return snap, nil
}

// Events returns the calendar events that intersect [start, end).
func (s *SensorSource) Events(_ context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CalendarEvent
	for _, ev := range s.calendar {
		if ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	return out, nil
}
