// Package subsystem holds the live state of the container's three sensor
// groups: Plant, Security, and GeoLocation.
//
// Each holder keeps the latest reading per metric as an atomically swapped
// immutable snapshot, so pipeline writes never tear concurrent reads. Every
// tenth setter call per metric persists the just-set reading to the
// historical store; every setter call, persisted or not, notifies the
// registered change listeners exactly once.
//
// Thresholds are loaded once through LoadThresholds before the holder is
// published to readers, and written through to the threshold store
// immediately when changed. Actuator setters update local state
// optimistically and report the device call's success to the caller, which
// owns any rollback.
package subsystem
