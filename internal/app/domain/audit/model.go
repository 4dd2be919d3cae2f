// Package audit defines the append-only access log entry and its closed set
// of event types.
package audit

import "time"

// AccessType is the closed set of sensitive operations that produce an audit
// entry. Free-form action strings are deliberately not accepted.
type AccessType string

const (
	AccessMnemonicReveal   AccessType = "mnemonic_reveal"
	AccessPrivateKeyReveal AccessType = "private_key_reveal"
	AccessPasscodeVerify   AccessType = "passcode_verify"
	AccessBackupConfirm    AccessType = "backup_confirm"
	AccessAdminReveal      AccessType = "admin_reveal"
	AccessAdminMassExport  AccessType = "admin_mass_export"
)

// Severity grades an entry. SecurityAlert marks admin reveals, mass exports,
// and integrity failures for downstream alerting.
type Severity string

const (
	SeverityInfo          Severity = "info"
	SeveritySecurityAlert Severity = "security_alert"
)

// Entry is one immutable access log row. There is no update or delete API.
type Entry struct {
	ID               string
	WalletID         string
	DevicePasscodeID string
	AccessType       AccessType
	Severity         Severity
	Success          bool
	Detail           string
	IP               string
	UserAgent        string
	CreatedAt        time.Time
}

// RequestContext carries caller metadata into audit entries. It is populated
// by the HTTP layer and treated as opaque by the services.
type RequestContext struct {
	IP        string
	UserAgent string
}

// AdminContext is the verified administrative identity supplied by the
// external authorization collaborator. It is trusted once supplied.
type AdminContext struct {
	AdminID string
	Role    string
}
