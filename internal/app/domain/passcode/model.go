// Package passcode defines the device passcode credential record.
package passcode

import "time"

// State distinguishes the single live credential of a device from rotated
// ones. Superseded records are kept so older wallets retain their foreign-key
// linkage.
type State string

const (
	StateActive     State = "active"
	StateSuperseded State = "superseded"
)

// Record is a persisted device credential. The passcode itself is stored
// only as a bcrypt hash. At most one record per device name is active.
type Record struct {
	ID               string
	DeviceName       string
	PasscodeHash     string
	State            State
	BiometricEnabled bool
	CreatedAt        time.Time
}
