package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

const CurrentSchemaVersion = 1

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRecord(r Record) ([]byte, error) {
	if r.SchemaVersion == 0 {
		r.SchemaVersion = CurrentSchemaVersion
	}
	return json.Marshal(r)
}

func DecodeRecord(data []byte) (Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, err
	}
	if record.SchemaVersion != CurrentSchemaVersion {
		return Record{}, fmt.Errorf("%w: schema=%d", ErrVersionMismatch, record.SchemaVersion)
	}
	return record, nil
}
