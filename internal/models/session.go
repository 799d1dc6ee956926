package models

import "time"

// MaxDeviceInfoLength bounds the client supplied device description (in runes)
const MaxDeviceInfoLength = 512

// Session represents one monitored call between a user and the caller
type Session struct {
	ID          string     `json:"session_id"`
	StartedAt   time.Time  `json:"started_at_utc"`
	EndedAt     *time.Time `json:"ended_at_utc"`
	DeviceInfo  *string    `json:"device_info,omitempty"`
	FinalReport *Report    `json:"final_report,omitempty"`
}

// Ended reports whether the session has an end timestamp
func (s *Session) Ended() bool {
	return s.EndedAt != nil
}

// TruncateDeviceInfo trims and bounds a device description. Empty input yields nil.
func TruncateDeviceInfo(info string) *string {
	if info == "" {
		return nil
	}
	r := []rune(info)
	if len(r) > MaxDeviceInfoLength {
		r = r[:MaxDeviceInfoLength]
	}
	s := string(r)
	return &s
}
