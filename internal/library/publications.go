package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/scheduler"
)

// Publication is one library entry.
type Publication struct {
	ID          string           `json:"id" yaml:"id"`
	Identifiers identifier.Map   `json:"identifiers" yaml:"identifiers"`
	Enrichment  *enrichment.Data `json:"enrichment,omitempty" yaml:"enrichment,omitempty"`
	EnrichedAt  *time.Time       `json:"enrichedAt,omitempty" yaml:"enrichedAt,omitempty"`
	AddedAt     time.Time        `json:"addedAt" yaml:"addedAt"`
}

// AddPublication inserts a publication or merges new identifiers into an
// existing one. Identifiers already stored keep their values.
func (s *Store) AddPublication(ctx context.Context, id string, ids identifier.Map) (*Publication, error) {
	if id == "" {
		return nil, fmt.Errorf("publication id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pub, err := scanPublication(tx.QueryRowContext(ctx, selectPublication+` WHERE id = ?`, id))
	switch {
	case errors.Is(err, ErrPublicationNotFound):
		pub = &Publication{ID: id, Identifiers: ids.Clone(), AddedAt: s.now().UTC().Truncate(time.Second)}
	case err != nil:
		return nil, err
	default:
		pub.Identifiers = pub.Identifiers.Merge(ids)
	}

	raw, err := json.Marshal(pub.Identifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identifiers: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO publications (id, identifiers, added_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET identifiers = excluded.identifiers
	`, id, string(raw), pub.AddedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to save publication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return pub, nil
}

// Publication returns one publication or ErrPublicationNotFound.
func (s *Store) Publication(ctx context.Context, id string) (*Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanPublication(s.db.QueryRowContext(ctx, selectPublication+` WHERE id = ?`, id))
}

// List returns every publication ordered by ID.
func (s *Store) List(ctx context.Context) ([]Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectPublication+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pubs []Publication
	for rows.Next() {
		pub, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, *pub)
	}
	return pubs, rows.Err()
}

// Remove deletes a publication and its failure record.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove publication: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPublicationNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failed_requests WHERE publication_id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove failure record: %w", err)
	}
	return nil
}

// StalePublications lists every publication with its last enrichment time.
// The scheduler decides which of them are due.
func (s *Store) StalePublications(ctx context.Context) ([]scheduler.Publication, error) {
	pubs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Publication, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, scheduler.Publication{
			ID:             p.ID,
			Identifiers:    p.Identifiers,
			LastEnrichedAt: p.EnrichedAt,
		})
	}
	return out, nil
}

// Enrichment returns the stored enrichment of a publication, nil when it has
// none or is not in the library.
func (s *Store) Enrichment(ctx context.Context, id string) (*enrichment.Data, error) {
	pub, err := s.Publication(ctx, id)
	if errors.Is(err, ErrPublicationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pub.Enrichment, nil
}

// SaveEnrichment stores a result, merging its identifiers into the
// publication. Unknown publications are added.
func (s *Store) SaveEnrichment(ctx context.Context, id string, result *enrichment.Result) error {
	if result == nil || result.Data == nil {
		return fmt.Errorf("no enrichment to save for %s", id)
	}
	pub, err := s.AddPublication(ctx, id, result.Identifiers)
	if err != nil {
		return err
	}

	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment: %w", err)
	}
	enrichedAt := result.Data.FetchedAt
	if enrichedAt.IsZero() {
		enrichedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `UPDATE publications SET enrichment = ?, enriched_at = ? WHERE id = ?`,
		string(data), unixOrNull(&enrichedAt), pub.ID)
	if err != nil {
		return fmt.Errorf("failed to save enrichment: %w", err)
	}
	return nil
}

const selectPublication = `SELECT id, identifiers, enrichment, enriched_at, added_at FROM publications`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPublication(row rowScanner) (*Publication, error) {
	var (
		pub        Publication
		rawIDs     string
		rawData    sql.NullString
		enrichedAt sql.NullInt64
		addedAt    int64
	)
	err := row.Scan(&pub.ID, &rawIDs, &rawData, &enrichedAt, &addedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPublicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read publication: %w", err)
	}

	if err := json.Unmarshal([]byte(rawIDs), &pub.Identifiers); err != nil {
		return nil, fmt.Errorf("failed to decode identifiers of %s: %w", pub.ID, err)
	}
	if rawData.Valid && rawData.String != "" {
		pub.Enrichment = &enrichment.Data{}
		if err := json.Unmarshal([]byte(rawData.String), pub.Enrichment); err != nil {
			return nil, fmt.Errorf("failed to decode enrichment of %s: %w", pub.ID, err)
		}
	}
	pub.EnrichedAt = fromUnix(enrichedAt)
	pub.AddedAt = time.Unix(addedAt, 0).UTC()
	return &pub, nil
}
