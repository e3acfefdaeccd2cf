// Package env provides host identity for status publishing.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID keys the protected machine ID so the raw ID is never published.
const AppID = "waybeam-pwm"

// MachineID retrieves the unique ID identifying the machine. It falls
// back to the host name when no machine ID is available, as on some
// minimal embedded images.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id[:16]
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
