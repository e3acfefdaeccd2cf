// Package msgs defines the status messages published by the bridge.
package msgs

// Status messages are published by the bridge daemon and consumed by
// monitoring tools. Each message is wrapped in a Typed envelope
// carrying its type ID, encoded with protobuf.
//
// Producer: waybeam-pwm
// Consumer: pwmmon, dashboards
