package models

// Report is the session-level summary produced when a call is finalized
type Report struct {
	FinalRiskScore float64 `json:"final_risk_score"`
	SummaryText    string  `json:"summary_text"`

	// Set when the stored report could not be decoded
	Error string `json:"error,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// Corrupt reports whether this is a decode-failure sentinel
func (r *Report) Corrupt() bool {
	return r != nil && r.Error != ""
}
