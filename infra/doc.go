// Package infra contains technical adapters: the MQTT bridge to Home
// Assistant, metrics exporters, Sentry monitoring and state storage.
// These packages depend only on the interfaces defined in core.
package infra
