package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"archtdea/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned stamps a record header with the current versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

func EncodeCandidates(records []model.CandidateRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeCandidates(data []byte) ([]model.CandidateRecord, error) {
	var records []model.CandidateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, fmt.Errorf("candidate %s: %w", record.ID, err)
		}
	}
	return records, nil
}

func EncodePreferences(records []model.PreferenceRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodePreferences(data []byte) ([]model.PreferenceRecord, error) {
	var records []model.PreferenceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, fmt.Errorf("preference %s: %w", record.ID, err)
		}
	}
	return records, nil
}

func EncodeRegions(regions []model.RegionRecord) ([]byte, error) {
	return json.Marshal(regions)
}

func DecodeRegions(data []byte) ([]model.RegionRecord, error) {
	var regions []model.RegionRecord
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeInteractionEvents(events []model.InteractionEvent) ([]byte, error) {
	return json.Marshal(events)
}

func DecodeInteractionEvents(data []byte) ([]model.InteractionEvent, error) {
	var events []model.InteractionEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
