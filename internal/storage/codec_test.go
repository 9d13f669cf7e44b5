package storage

import (
	"errors"
	"testing"

	"archtdea/internal/model"
)

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	data := []byte(`{"schema_version":2,"codec_version":1,"id":"run-1"}`)
	_, err := DecodeRun(data)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeCandidatesRejectsAnyStaleRecord(t *testing.T) {
	data := []byte(`[
		{"schema_version":1,"codec_version":1,"id":"c1"},
		{"schema_version":1,"codec_version":0,"id":"c2"}
	]`)
	_, err := DecodeCandidates(data)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestCandidateCodecKeepsUndefinedDominance(t *testing.T) {
	dv := -0.25
	input := []model.CandidateRecord{
		{VersionedRecord: Versioned(), ID: "c1", Distribution: []int{0, 1, 1}, Objectives: []float64{0.5, 0, 0.2}, Feasible: true, DominanceValue: &dv},
		{VersionedRecord: Versioned(), ID: "c2", Distribution: []int{0, 0, 0}, Objectives: []float64{1, 1, 1}},
	}
	data, err := EncodeCandidates(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeCandidates(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output[0].DominanceValue == nil || *output[0].DominanceValue != dv {
		t.Fatalf("unexpected dominance value: %+v", output[0].DominanceValue)
	}
	if output[1].DominanceValue != nil {
		t.Fatalf("expected undefined dominance value, got %v", *output[1].DominanceValue)
	}
}

func TestDecodePreferencesRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodePreferences([]byte(`{"id":`)); err == nil {
		t.Fatal("expected decode error")
	}
}
