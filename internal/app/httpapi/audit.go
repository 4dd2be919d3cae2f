package httpapi

import (
	"time"

	auditdom "github.com/OpenCustody/wallet_layer/internal/app/domain/audit"
)

// accessLogEntry is the wire shape of one audit row.
type accessLogEntry struct {
	ID               string    `json:"id"`
	WalletID         string    `json:"wallet_id"`
	DevicePasscodeID string    `json:"device_passcode_id,omitempty"`
	AccessType       string    `json:"access_type"`
	Severity         string    `json:"severity"`
	Success          bool      `json:"success"`
	Detail           string    `json:"detail,omitempty"`
	IP               string    `json:"ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toAccessLogResponse(entries []auditdom.Entry) []accessLogEntry {
	out := make([]accessLogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, accessLogEntry{
			ID:               e.ID,
			WalletID:         e.WalletID,
			DevicePasscodeID: e.DevicePasscodeID,
			AccessType:       string(e.AccessType),
			Severity:         string(e.Severity),
			Success:          e.Success,
			Detail:           e.Detail,
			IP:               e.IP,
			UserAgent:        e.UserAgent,
			CreatedAt:        e.CreatedAt,
		})
	}
	return out
}
