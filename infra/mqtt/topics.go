package mqtt

import (
	"errors"
	"strings"

	"github.com/kilianp07/smartcharge/core/model"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics maps host entities to MQTT topics. State topics are read, command
// topics are written. An empty command topic disables that command.
type Topics struct {
	// Prefix is the root of the topics owned by this service.
	Prefix          string `json:"prefix"`
	DiscoveryPrefix string `json:"discovery_prefix"`

	Household [model.Phases]string `json:"household_phases"`
	Charger   [model.Phases]string `json:"charger_phases"`
	CarSoC    string               `json:"car_soc"`
	Plugged   string               `json:"car_plugged"`
	Prices    string               `json:"prices"`
	Calendar  string               `json:"calendar"`

	Switch       string `json:"charger_switch"`
	Resume       string `json:"charger_resume"`
	Stop         string `json:"charger_stop"`
	CurrentLimit string `json:"charger_current_limit"`
	CarLimit     string `json:"car_limit"`
	// CarLimitService receives {ac_limit, dc_limit, entity_id|device_id}
	// when CarLimit is empty.
	CarLimitService string `json:"car_limit_service"`
	CarLimitTarget  string `json:"car_limit_target"`
	CarRefresh      string `json:"car_refresh"`
}

// SetDefaults applies defaults for unset fields.
func (t *Topics) SetDefaults() {
	if t.Prefix == "" {
		t.Prefix = "smartcharge"
	}
	t.Prefix = strings.TrimSuffix(t.Prefix, "/")
	if t.DiscoveryPrefix == "" {
		t.DiscoveryPrefix = "homeassistant"
	}
}

// Validate checks that the readings the controller cannot work without are
// mapped.
func (t Topics) Validate() error {
	if t.CarSoC == "" {
		return errors.New("topics.car_soc is required")
	}
	if t.Plugged == "" {
		return errors.New("topics.car_plugged is required")
	}
	if t.Prices == "" {
		return errors.New("topics.prices is required")
	}
	if t.CarLimit == "" && t.CarLimitService != "" && t.CarLimitTarget == "" {
		return errors.New("topics.car_limit_target is required with car_limit_service")
	}
	return nil
}

// AvailabilityTopic carries the online/offline state of the service.
func (t Topics) AvailabilityTopic() string { return t.Prefix + "/status" }

// StateTopic is where the named published state lives.
func (t Topics) StateTopic(name string) string { return t.Prefix + "/state/" + name }

// SetTopic receives user input for the named setting.
func (t Topics) SetTopic(key string) string { return t.Prefix + "/set/" + key }

// ButtonTopic receives presses of the named button.
func (t Topics) ButtonTopic(name string) string { return t.Prefix + "/button/" + name }

func (t Topics) stateTopics() []string {
	var out []string
	for _, s := range t.Household {
		if s != "" {
			out = append(out, s)
		}
	}
	for _, s := range t.Charger {
		if s != "" {
			out = append(out, s)
		}
	}
	for _, s := range []string{t.CarSoC, t.Plugged, t.Prices, t.Calendar} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// targetKey picks entity_id for entity ids and device_id for bare device ids.
func targetKey(id string) string {
	if strings.Contains(id, ".") {
		return "entity_id"
	}
	return "device_id"
}
