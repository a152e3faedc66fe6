// Package ingest implements the telemetry processing pipeline: payload
// parsing, staleness filtering, per-subsystem routing, and per-partition
// checkpoint tracking.
//
// One stream event carries a JSON document with up to three top-level
// subsystem arrays. Each array is processed inside its own failure boundary,
// and within an array each record is parsed, filtered against the startup
// watermark, and dispatched to the owning subsystem's setter. A malformed
// record or a failing subsystem branch never aborts sibling work in the
// same document.
//
// The Processor wires a stream.Source to the Router and CheckpointTracker
// and owns the pipeline's lifecycle.
package ingest
