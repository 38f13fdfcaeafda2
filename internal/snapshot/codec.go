package snapshot

import (
	"encoding/json"
	"errors"

	"kmcsim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// ErrVersionMismatch signals a snapshot written by an incompatible codec or
// schema version; callers should refuse to resume from it rather than guess
// at a migration.
var ErrVersionMismatch = errors.New("snapshot version mismatch")

// EncodeRun stamps snap with the current schema/codec versions and
// serializes it. The caller does not need to set VersionedRecord itself.
func EncodeRun(snap model.RunSnapshot) ([]byte, error) {
	snap.SchemaVersion = CurrentSchemaVersion
	snap.CodecVersion = CurrentCodecVersion
	return json.Marshal(snap)
}

// DecodeRun deserializes a snapshot and rejects one stamped with a version
// this build does not understand.
func DecodeRun(data []byte) (model.RunSnapshot, error) {
	var snap model.RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.RunSnapshot{}, err
	}
	if err := checkVersion(snap.VersionedRecord); err != nil {
		return model.RunSnapshot{}, err
	}
	return snap, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
