package library

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lepinkainen/bibsync/internal/tracker"
)

var _ tracker.Store = (*Store)(nil)

func (s *Store) SaveFailure(fr tracker.FailedRequest) error {
	raw, err := json.Marshal(fr.Identifiers)
	if err != nil {
		return fmt.Errorf("failed to encode identifiers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO failed_requests
			(publication_id, identifiers, last_error, retry_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fr.PublicationID, string(raw), fr.LastError, fr.RetryCount, fr.FirstSeen.UnixNano(), fr.LastSeen.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save failed request: %w", err)
	}
	return nil
}

func (s *Store) DeleteFailure(publicationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM failed_requests WHERE publication_id = ?`, publicationID); err != nil {
		return fmt.Errorf("failed to delete failed request: %w", err)
	}
	return nil
}

func (s *Store) DeleteAllFailures() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM failed_requests`); err != nil {
		return fmt.Errorf("failed to delete failed requests: %w", err)
	}
	return nil
}

func (s *Store) LoadFailures() ([]tracker.FailedRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT publication_id, identifiers, last_error, retry_count, first_seen, last_seen
		FROM failed_requests ORDER BY publication_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load failed requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []tracker.FailedRequest
	for rows.Next() {
		var (
			fr                  tracker.FailedRequest
			rawIDs              string
			firstSeen, lastSeen int64
		)
		if err := rows.Scan(&fr.PublicationID, &rawIDs, &fr.LastError, &fr.RetryCount, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to read failed request: %w", err)
		}
		if err := json.Unmarshal([]byte(rawIDs), &fr.Identifiers); err != nil {
			return nil, fmt.Errorf("failed to decode identifiers of %s: %w", fr.PublicationID, err)
		}
		fr.FirstSeen = time.Unix(0, firstSeen).UTC()
		fr.LastSeen = time.Unix(0, lastSeen).UTC()
		out = append(out, fr)
	}
	return out, rows.Err()
}
