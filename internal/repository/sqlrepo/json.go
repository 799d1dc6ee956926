package sqlrepo

import (
	"database/sql"
	"encoding/json"

	"github.com/naduri/naduri-backend/internal/models"
)

// JSON columns travel as text: lib/pq would send []byte as bytea, which JSONB rejects.

func encodeMeta(meta *models.TurnMeta) (sql.NullString, error) {
	if meta == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func encodeReport(report *models.Report) (sql.NullString, error) {
	if report == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMeta(raw sql.NullString) *models.TurnMeta {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var meta models.TurnMeta
	if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
		return &models.TurnMeta{Error: "invalid meta json", Raw: raw.String}
	}
	return &meta
}

func decodeReport(raw sql.NullString) *models.Report {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var report models.Report
	if err := json.Unmarshal([]byte(raw.String), &report); err != nil {
		return &models.Report{Error: "invalid report json", Raw: raw.String}
	}
	return &report
}
