package factory

import (
	"strings"
	"testing"
)

type sink struct {
	URL     string
	Timeout int
}

type sinkConf struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout_s"`
}

func newRegistry(t *testing.T) *Registry[*sink] {
	t.Helper()
	reg := NewRegistry[*sink]()
	if err := reg.Register("influx", func(conf map[string]any) (*sink, error) {
		var c sinkConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sink{URL: c.URL, Timeout: c.Timeout}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestRegistry_Create(t *testing.T) {
	inst, err := newRegistry(t).Create(ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://influx:8086", "timeout_s": 5}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.URL != "http://influx:8086" || inst.Timeout != 5 {
		t.Fatalf("unexpected sink %+v", inst)
	}
}

func TestDecodeAcceptsStrings(t *testing.T) {
	inst, err := newRegistry(t).Create(ModuleConfig{Type: "influx", Conf: map[string]any{"timeout_s": "7"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Timeout != 7 {
		t.Fatalf("expected 7 got %d", inst.Timeout)
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.Register("influx", func(map[string]any) (*sink, error) { return nil, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	_, err := reg.Create(ModuleConfig{Type: "kafka"})
	if err == nil || !strings.Contains(err.Error(), "known: influx") {
		t.Fatalf("expected unknown type error listing known types, got %v", err)
	}
}
