package mqtt

import (
	"errors"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/smartcharge/core/control"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Button names.
const (
	ButtonClearOverride = "clear_override"
	ButtonRefreshPlan   = "refresh_plan"
)

// Inputs is the part of the controller driven by the user.
type Inputs interface {
	SetUserInput(key, value string) error
	ClearManualOverride()
	RequestRefresh()
}

// CommandListener routes Home Assistant set and button topics to the
// controller.
type CommandListener struct {
	topics Topics
	in     Inputs
	log    logger.Logger
}

// NewCommandListener subscribes to one set topic per setting and to the
// buttons.
func NewCommandListener(c *Client, topics Topics, in Inputs) (*CommandListener, error) {
	l := &CommandListener{topics: topics, in: in, log: logger.New("mqtt_listener")}
	for _, key := range control.SettingKeys() {
		if err := c.Subscribe(topics.SetTopic(key), l.onMessage); err != nil {
			return nil, err
		}
	}
	for _, b := range []string{ButtonClearOverride, ButtonRefreshPlan} {
		if err := c.Subscribe(topics.ButtonTopic(b), l.onMessage); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *CommandListener) onMessage(_ paho.Client, msg paho.Message) {
	l.Handle(msg.Topic(), string(msg.Payload()))
}

// Handle applies one command message.
func (l *CommandListener) Handle(topic, payload string) {
	switch {
	case topic == l.topics.ButtonTopic(ButtonClearOverride):
		l.in.ClearManualOverride()
	case topic == l.topics.ButtonTopic(ButtonRefreshPlan):
		l.in.RequestRefresh()
	case strings.HasPrefix(topic, l.topics.SetTopic("")):
		key := strings.TrimPrefix(topic, l.topics.SetTopic(""))
		if err := l.in.SetUserInput(key, payload); err != nil {
			if errors.Is(err, control.ErrUnknownSetting) || errors.Is(err, control.ErrInvalidValue) {
				l.log.Warnf("rejected input on %s: %v", topic, err)
				return
			}
			l.log.Errorf("input on %s: %v", topic, err)
		}
	default:
		l.log.Debugf("ignoring message on %s", topic)
	}
}
