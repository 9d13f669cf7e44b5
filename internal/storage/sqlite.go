//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"archtdea/internal/model"

	_ "modernc.org/sqlite"
)

const (
	kindPreferences  = "preferences"
	kindRegions      = "regions"
	kindDiagnostics  = "diagnostics"
	kindInteractions = "interactions"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at_utc DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SaveCandidates(ctx context.Context, runID string, set CandidateSet, candidates []model.CandidateRecord) error {
	if !set.Valid() {
		return errors.New("invalid candidate set")
	}
	payload, err := EncodeCandidates(candidates)
	if err != nil {
		return err
	}
	return s.saveArtifact(ctx, runID, candidateKind(set), payload)
}

func (s *SQLiteStore) GetCandidates(ctx context.Context, runID string, set CandidateSet) ([]model.CandidateRecord, bool, error) {
	return loadArtifact(ctx, s, runID, candidateKind(set), DecodeCandidates)
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, runID string, prefs []model.PreferenceRecord) error {
	payload, err := EncodePreferences(prefs)
	if err != nil {
		return err
	}
	return s.saveArtifact(ctx, runID, kindPreferences, payload)
}

func (s *SQLiteStore) GetPreferences(ctx context.Context, runID string) ([]model.PreferenceRecord, bool, error) {
	return loadArtifact(ctx, s, runID, kindPreferences, DecodePreferences)
}

func (s *SQLiteStore) SaveRegions(ctx context.Context, runID string, regions []model.RegionRecord) error {
	payload, err := EncodeRegions(regions)
	if err != nil {
		return err
	}
	return s.saveArtifact(ctx, runID, kindRegions, payload)
}

func (s *SQLiteStore) GetRegions(ctx context.Context, runID string) ([]model.RegionRecord, bool, error) {
	return loadArtifact(ctx, s, runID, kindRegions, DecodeRegions)
}

func (s *SQLiteStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.saveArtifact(ctx, runID, kindDiagnostics, payload)
}

func (s *SQLiteStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	return loadArtifact(ctx, s, runID, kindDiagnostics, DecodeGenerationDiagnostics)
}

func (s *SQLiteStore) SaveInteractionEvents(ctx context.Context, runID string, events []model.InteractionEvent) error {
	payload, err := EncodeInteractionEvents(events)
	if err != nil {
		return err
	}
	return s.saveArtifact(ctx, runID, kindInteractions, payload)
}

func (s *SQLiteStore) GetInteractionEvents(ctx context.Context, runID string) ([]model.InteractionEvent, bool, error) {
	return loadArtifact(ctx, s, runID, kindInteractions, DecodeInteractionEvents)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func (s *SQLiteStore) saveArtifact(ctx context.Context, runID, kind string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, kind, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, kind) DO UPDATE SET
			payload = excluded.payload
	`, runID, kind, payload)
	return err
}

func loadArtifact[T any](ctx context.Context, s *SQLiteStore, runID, kind string, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	db, err := s.getDB()
	if err != nil {
		return zero, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM artifacts WHERE run_id = ? AND kind = ?`, runID, kind).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, err
	}

	value, err := decode(payload)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s for run %s: %w", kind, runID, err)
	}
	return value, true, nil
}

func candidateKind(set CandidateSet) string {
	return "candidates:" + string(set)
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS artifacts (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, kind)
		);
	`)
	return err
}
