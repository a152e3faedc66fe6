// Package shft is the telemetry backbone for a remotely monitored farming
// container. The daemon consumes device telemetry from a partitioned event
// stream, routes readings to per-subsystem state holders, persists a
// rolling history, and pushes live state changes to UI observers.
//
// Package layout:
//   - cmd/shft-telemetryd: daemon entry point and wiring
//   - stream: partitioned event stream consumer (Kafka consumer group)
//   - ingest: telemetry document parsing, staleness filtering, routing,
//     checkpoint tracking
//   - subsystem: Plant, Security, and GeoLocation state holders with
//     thresholds and actuator control
//   - store: historical readings and thresholds over NATS JetStream KV
//   - actuator: device commands over NATS request/reply, device-config
//     writes
//   - notify: change fan-out, websocket feed, bus mirroring
//   - reading, pkg/timestamp: the telemetry data model and wire time format
//   - component, config, errors, metric, natsclient, pkg/retry: shared
//     infrastructure
package shft
