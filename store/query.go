package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/uf"
)

// ErrNotFound is returned when no active row matches.
var ErrNotFound = errors.New("store: not found")

// InterstateRate is an active interstate row.
type InterstateRate struct {
	Origin      uf.Code `json:"origem"`
	Destination uf.Code `json:"destino"`
	Rate        float64 `json:"aliquota"`
	Source      string  `json:"fonte"`
	ExtractedAt string  `json:"data_extracao"`
}

// IntrastateRate is an active intrastate row.
type IntrastateRate struct {
	State       uf.Code `json:"uf"`
	Rate        float64 `json:"aliquota"`
	Source      string  `json:"fonte"`
	ExtractedAt string  `json:"data_extracao"`
}

// HistoryEntry is one import outcome.
type HistoryEntry struct {
	ID           string    `json:"id"`
	Source       string    `json:"fonte"`
	Status       string    `json:"status"`
	TotalRecords int       `json:"total_registros_inseridos"`
	Message      string    `json:"mensagem"`
	ExtractedAt  string    `json:"data_extracao"`
	CreatedAt    time.Time `json:"created_at"`
}

// Rate returns the latest active rate from origin to dest.
func (s *Store) Rate(ctx context.Context, origin, dest uf.Code) (*InterstateRate, error) {
	var r InterstateRate
	var o, d string
	err := s.db.QueryRowContext(ctx,
		`SELECT uf_origem, uf_destino, aliquota, fonte, data_extracao
		 FROM aliquotas_interestaduais
		 WHERE uf_origem = ? AND uf_destino = ? AND ativo = 1
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(origin), string(dest)).Scan(&o, &d, &r.Rate, &r.Source, &r.ExtractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: rate %s->%s: %w", origin, dest, err)
	}
	r.Origin, r.Destination = uf.Code(o), uf.Code(d)
	return &r, nil
}

// Intrastate lists the active intrastate rates in state order.
func (s *Store) Intrastate(ctx context.Context) ([]IntrastateRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uf, aliquota, fonte, data_extracao FROM aliquotas_internas
		 WHERE ativo = 1 ORDER BY uf`)
	if err != nil {
		return nil, fmt.Errorf("store: intrastate: %w", err)
	}
	defer rows.Close()

	var out []IntrastateRate
	for rows.Next() {
		var r IntrastateRate
		var st string
		if err := rows.Scan(&st, &r.Rate, &r.Source, &r.ExtractedAt); err != nil {
			return nil, fmt.Errorf("store: intrastate: %w", err)
		}
		r.State = uf.Code(st)
		out = append(out, r)
	}
	return out, rows.Err()
}

// IntrastateFor returns the active intrastate rate of st.
func (s *Store) IntrastateFor(ctx context.Context, st uf.Code) (*IntrastateRate, error) {
	r := IntrastateRate{State: st}
	err := s.db.QueryRowContext(ctx,
		`SELECT aliquota, fonte, data_extracao FROM aliquotas_internas
		 WHERE uf = ? AND ativo = 1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(st)).Scan(&r.Rate, &r.Source, &r.ExtractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: intrastate %s: %w", st, err)
	}
	return &r, nil
}

// Matrix returns every active interstate rate.
func (s *Store) Matrix(ctx context.Context) (icms.Matrix, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uf_origem, uf_destino, aliquota FROM aliquotas_interestaduais WHERE ativo = 1`)
	if err != nil {
		return nil, fmt.Errorf("store: matrix: %w", err)
	}
	defer rows.Close()

	m := icms.Matrix{}
	for rows.Next() {
		var o, d string
		var v float64
		if err := rows.Scan(&o, &d, &v); err != nil {
			return nil, fmt.Errorf("store: matrix: %w", err)
		}
		m.Set(uf.Code(o), uf.Code(d), icms.Rate(v))
	}
	return m, rows.Err()
}

// History returns the latest import outcomes first. limit <= 0 means 10.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fonte, status, total_registros_inseridos, mensagem, data_extracao, created_at
		 FROM historico_atualizacoes ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var created string
		if err := rows.Scan(&h.ID, &h.Source, &h.Status, &h.TotalRecords, &h.Message, &h.ExtractedAt, &created); err != nil {
			return nil, fmt.Errorf("store: history: %w", err)
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
