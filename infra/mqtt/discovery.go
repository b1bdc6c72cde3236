package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// DiscoveryConfig is a Home Assistant MQTT discovery payload.
type DiscoveryConfig struct {
	Device            DiscoveryDevice `json:"device"`
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic,omitempty"`
	CommandTopic      string          `json:"command_topic,omitempty"`
	AvailabilityTopic string          `json:"availability_topic,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	EntityCategory    string          `json:"entity_category,omitempty"`
	Icon              string          `json:"icon,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	PayloadPress      string          `json:"payload_press,omitempty"`
	Min               *float64        `json:"min,omitempty"`
	Max               *float64        `json:"max,omitempty"`
	Step              float64         `json:"step,omitempty"`
	Mode              string          `json:"mode,omitempty"`
	Pattern           string          `json:"pattern,omitempty"`
}

// DiscoveryDevice groups the entities under one device.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type entity struct {
	component string
	id        string
	cfg       DiscoveryConfig
}

// Discovery describes every entity exposed by the service.
func Discovery(t Topics, currency string) map[string]DiscoveryConfig {
	dev := DiscoveryDevice{
		Identifiers:  []string{t.Prefix},
		Name:         "EV Smart Charger",
		Manufacturer: "smartcharge",
		Model:        "Smart charging controller",
	}
	sensor := func(id, name, unit, class, icon string) entity {
		cfg := DiscoveryConfig{Name: name, StateTopic: t.StateTopic(id), UnitOfMeasurement: unit, DeviceClass: class, Icon: icon}
		if unit != "" {
			cfg.StateClass = "measurement"
		}
		return entity{component: "sensor", id: id, cfg: cfg}
	}
	number := func(id, name, unit string, min, max, step float64) entity {
		cfg := DiscoveryConfig{Name: name, StateTopic: t.StateTopic(id), CommandTopic: t.SetTopic(id), UnitOfMeasurement: unit, Mode: "box"}
		cfg.Min, cfg.Max, cfg.Step = &min, &max, step
		return entity{component: "number", id: id, cfg: cfg}
	}
	text := func(id, name string) entity {
		return entity{component: "text", id: id, cfg: DiscoveryConfig{
			Name: name, StateTopic: t.StateTopic(id), CommandTopic: t.SetTopic(id),
			Pattern: `^(none|[0-2]?[0-9]:[0-5][0-9](:[0-5][0-9])?)$`,
		}}
	}
	button := func(id, name, icon string) entity {
		return entity{component: "button", id: id, cfg: DiscoveryConfig{
			Name: name, CommandTopic: t.ButtonTopic(id), PayloadPress: PayloadPress, Icon: icon,
		}}
	}
	price := currency + "/kWh"

	entities := []entity{
		sensor(StateStatus, "Charging Status", "", "", "mdi:ev-station"),
		sensor(StatePlan, "Charging Plan", "", "", "mdi:calendar-clock"),
		sensor(StateVirtualSoC, "Virtual SoC", "%", "battery", ""),
		sensor(StateSafeCurrent, "Safe Current", "A", "current", ""),
		sensor(StatePrice, "Current Price", price, "", "mdi:cash"),
		sensor(StatePriceLabel, "Price Level", "", "", "mdi:cash-clock"),
		sensor(StateChargerState, "Charger State", "", "", "mdi:power-plug"),
		sensor(StateAppliedAmps, "Applied Current", "A", "current", ""),
		sensor(StateOverload, "Overload Prevention Time", "min", "duration", ""),
		sensor(StateLossPct, "Charger Loss", "%", "", "mdi:flash-outline"),
		sensor(StateConfidence, "Learning Confidence", "", "", "mdi:school"),
		sensor(StateDecision, "Charging Decision", "", "", "mdi:information-outline"),
		sensor(StateActionLog, "Action Log", "", "", "mdi:history"),
		sensor(StateLastSession, "Last Session", "", "", "mdi:history"),
		{component: "binary_sensor", id: StateManualOverride, cfg: DiscoveryConfig{
			Name: "Manual Override", StateTopic: t.StateTopic(StateManualOverride),
			PayloadOn: PayloadOn, PayloadOff: PayloadOff,
		}},
		number("target_soc", "Target SoC", "%", 0, 100, 1),
		number("min_soc", "Minimum SoC", "%", 0, 100, 1),
		number("target_soc_override", "Target SoC Override", "%", 0, 100, 1),
		number("target_soc_1", "Target SoC at Price Limit 1", "%", 0, 100, 1),
		number("target_soc_2", "Target SoC at Price Limit 2", "%", 0, 100, 1),
		number("price_limit_1", "Price Limit 1", price, -10, 100, 0.01),
		number("price_limit_2", "Price Limit 2", price, -10, 100, 0.01),
		number("price_extra_fee", "Price Extra Fee", price, 0, 100, 0.0001),
		number("price_vat", "Price VAT", "%", 0, 100, 1),
		text("departure_time", "Departure Time"),
		text("departure_override", "Departure Override"),
		{component: "switch", id: "smart_charging", cfg: DiscoveryConfig{
			Name: "Smart Charging", StateTopic: t.StateTopic("smart_charging"), CommandTopic: t.SetTopic("smart_charging"),
			PayloadOn: PayloadOn, PayloadOff: PayloadOff,
		}},
		button(ButtonClearOverride, "Clear Manual Override", "mdi:restore"),
		button(ButtonRefreshPlan, "Refresh Charging Plan", "mdi:refresh"),
	}

	out := make(map[string]DiscoveryConfig, len(entities))
	for _, e := range entities {
		cfg := e.cfg
		cfg.Device = dev
		cfg.UniqueID = t.Prefix + "_" + e.id
		cfg.AvailabilityTopic = t.AvailabilityTopic()
		out[fmt.Sprintf("%s/%s/%s/%s/config", t.DiscoveryPrefix, e.component, t.Prefix, e.id)] = cfg
	}
	return out
}

// PublishDiscovery announces every entity to Home Assistant with retained
// messages.
func PublishDiscovery(ctx context.Context, c *Client, t Topics, currency string) error {
	for topic, cfg := range Discovery(t, currency) {
		payload, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := c.Publish(ctx, "discovery", topic, payload, true); err != nil {
			return err
		}
	}
	return nil
}
