package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

// marshalData converts native document data to wire JSON TEXT for storage.
func (s *Store) marshalData(data map[string]any) (string, error) {
	w, err := s.codec.EncodeData(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	out, err := wire.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(out), nil
}

// unmarshalData converts stored wire JSON TEXT back to native data.
func (s *Store) unmarshalData(text string) (map[string]any, error) {
	m, err := wire.ParseMap([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	data, err := s.codec.DecodeData(m)
	if err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return data, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSnapshot reads (path, data, create_time, update_time).
func (s *Store) scanSnapshot(row scanner) (store.Snapshot, error) {
	var (
		path, text       string
		created, updated int64
	)
	if err := row.Scan(&path, &text, &created, &updated); err != nil {
		return store.Snapshot{}, err
	}
	data, err := s.unmarshalData(text)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("document %s: %w", path, err)
	}
	return store.Snapshot{
		Path:       path,
		Exists:     true,
		Data:       data,
		CreateTime: time.UnixMicro(created).UTC(),
		UpdateTime: time.UnixMicro(updated).UTC(),
	}, nil
}

func scanSnapshots(s *Store, rows *sql.Rows) ([]store.Snapshot, error) {
	defer rows.Close()

	snaps := []store.Snapshot{}
	for rows.Next() {
		snap, err := s.scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return snaps, nil
}
