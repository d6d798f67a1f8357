package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

const (
	fieldID        = "id"
	fieldCreatedAt = "createdAt"
)

// TimestampLayout is the ISO 8601 form written for createdAt, with fixed
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Reservation is a free-form booking record. ID and CreatedAt are owned by
// the server; everything else the client sent is kept verbatim in Fields.
type Reservation struct {
	ID        string
	CreatedAt time.Time
	Fields    map[string]any

	// createdAtText is the timestamp exactly as read from storage, written
	// back unchanged so stored records never drift.
	createdAtText string
}

// NewReservation builds a record from a client payload. Any id or createdAt
// keys in the payload are dropped in favour of the server values.
func NewReservation(id string, createdAt time.Time, payload map[string]any) Reservation {
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == fieldID || k == fieldCreatedAt {
			continue
		}
		fields[k] = v
	}
	return Reservation{ID: id, CreatedAt: createdAt.UTC().Truncate(time.Millisecond), Fields: fields}
}

func (r Reservation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[fieldID] = r.ID
	switch {
	case r.createdAtText != "":
		out[fieldCreatedAt] = r.createdAtText
	case !r.CreatedAt.IsZero():
		out[fieldCreatedAt] = r.CreatedAt.Format(TimestampLayout)
	}
	return json.Marshal(out)
}

func (r *Reservation) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("reservation must be a JSON object")
	}

	switch v := raw[fieldID].(type) {
	case string:
		r.ID = v
	case json.Number:
		// Records written by the legacy server carry numeric ids.
		r.ID = v.String()
	}
	delete(raw, fieldID)

	r.CreatedAt = time.Time{}
	r.createdAtText = ""
	if s, ok := raw[fieldCreatedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			r.CreatedAt = t
			r.createdAtText = s
			delete(raw, fieldCreatedAt)
		}
	}

	r.Fields = raw
	return nil
}
