// Package actuator sends device commands over the message bus.
//
// Each command is a bounded request/reply exchange with the container
// device: the command payload carries the desired on/off state, and the
// device answers with a status code. A command succeeds only when the
// device acknowledges with status 200 inside the invocation timeout.
//
// The package also writes device-side configuration, such as the telemetry
// reporting interval, into the device-config key/value bucket the device
// watches.
package actuator
