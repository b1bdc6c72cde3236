package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/actuation"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Command payloads.
const (
	PayloadOn    = "ON"
	PayloadOff   = "OFF"
	PayloadPress = "PRESS"
)

// Port publishes charger and car commands.
type Port struct {
	cli           *Client
	topics        Topics
	refreshTarget string
	log           logger.Logger
	now           func() time.Time
}

// NewPort returns a Port. refreshTarget is the entity or device id put in car
// refresh requests.
func NewPort(c *Client, topics Topics, refreshTarget string) *Port {
	return &Port{
		cli:           c,
		topics:        topics,
		refreshTarget: refreshTarget,
		log:           logger.New("mqtt_port"),
		now:           time.Now,
	}
}

// SetSwitch turns the charger on or off. Without a switch topic the resume
// and stop buttons are pressed instead.
func (p *Port) SetSwitch(ctx context.Context, on bool) error {
	if p.topics.Switch != "" {
		payload := PayloadOff
		if on {
			payload = PayloadOn
		}
		return p.cli.Publish(ctx, "command", p.topics.Switch, []byte(payload), false)
	}
	button := p.topics.Stop
	if on {
		button = p.topics.Resume
	}
	if button == "" {
		return actuation.ErrNotConfigured
	}
	return p.cli.Publish(ctx, "command", button, []byte(PayloadPress), false)
}

// SetCurrentLimit sets the charger current limit in amps.
func (p *Port) SetCurrentLimit(ctx context.Context, amps int) error {
	if p.topics.CurrentLimit == "" {
		return actuation.ErrNotConfigured
	}
	return p.cli.Publish(ctx, "command", p.topics.CurrentLimit, []byte(strconv.Itoa(amps)), false)
}

// SetCarLimit sets the car charge limit through the number topic, or through
// the limit service when no number topic is mapped.
func (p *Port) SetCarLimit(ctx context.Context, soc int) error {
	if p.topics.CarLimit != "" {
		return p.cli.Publish(ctx, "command", p.topics.CarLimit, []byte(strconv.Itoa(soc)), false)
	}
	if p.topics.CarLimitService == "" || p.topics.CarLimitTarget == "" {
		return actuation.ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]any{
		"ac_limit":                         soc,
		"dc_limit":                         soc,
		targetKey(p.topics.CarLimitTarget): p.topics.CarLimitTarget,
	})
	if err != nil {
		return err
	}
	return p.cli.Publish(ctx, "command", p.topics.CarLimitService, payload, false)
}

type refreshCommand struct {
	CommandID string `json:"command_id"`
	EntityID  string `json:"entity_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// RequestRefresh asks the car integration to poll the vehicle.
func (p *Port) RequestRefresh(ctx context.Context) error {
	if p.topics.CarRefresh == "" || p.refreshTarget == "" {
		return actuation.ErrNotConfigured
	}
	cmd := refreshCommand{CommandID: uuid.NewString(), Timestamp: p.now().UnixMilli()}
	if targetKey(p.refreshTarget) == "entity_id" {
		cmd.EntityID = p.refreshTarget
	} else {
		cmd.DeviceID = p.refreshTarget
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := p.cli.Publish(ctx, "command", p.topics.CarRefresh, payload, false); err != nil {
		return fmt.Errorf("car refresh: %w", err)
	}
	p.log.Infof("sent refresh %s to %s", cmd.CommandID, p.topics.CarRefresh)
	return nil
}
