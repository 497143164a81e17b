// Package store persists reconciled snapshots in SQLite and answers the
// rate lookups of the serving layer. It implements icms.Ingester.
//
// Every import soft-deletes the active rows (ativo = 0) and inserts the
// new ones, so the tables keep the full history of imported rates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/snapshot"
	"github.com/hazyhaar/icmsnap/uf"
)

// BatchSize is the number of interstate rows inserted per transaction.
const BatchSize = 100

// History statuses.
const (
	StatusSuccess = "sucesso"
	StatusPartial = "parcial"
	StatusError   = "erro"
)

// UnknownSource is recorded when a snapshot names no used source.
const UnknownSource = "desconhecida"

// Store is an SQLite-backed rate store.
type Store struct {
	db     *sql.DB
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created_at. Default: time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// Open opens (and creates if needed) the database at path. Use ":memory:"
// for a throwaway store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:     db,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) stamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

// Ingest imports snap. Per-state and per-batch failures are collected in
// the result instead of stopping the import; a history row records the
// outcome. Text cells are not importable and are reported as errors.
func (s *Store) Ingest(ctx context.Context, snap *icms.Snapshot) (*icms.IngestResult, error) {
	if snap == nil {
		return nil, errors.New("store: ingest: nil snapshot")
	}
	fonte := UnknownSource
	if len(snap.Metadata.Used) > 0 {
		fonte = snap.Metadata.Used[0]
	}
	extractedAt := snap.Metadata.ExtractedAt.UTC().Format(time.RFC3339Nano)

	internas, errsIn := s.insertIntrastate(ctx, snap.Intrastate, fonte, extractedAt)
	inter, errsInter := s.insertInterstate(ctx, snap.Matrix, fonte, extractedAt)

	res := &icms.IngestResult{
		Success:         true,
		TotalRecords:    internas + inter,
		TotalIntrastate: internas,
		TotalInterstate: inter,
		Errors:          append(errsIn, errsInter...),
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}

	status := StatusSuccess
	switch {
	case len(res.Errors) > 0 && res.TotalRecords == 0:
		status, res.Success = StatusError, false
	case len(res.Errors) > 0:
		status = StatusPartial
	}
	msg := fmt.Sprintf("Importados %d alíquotas internas e %d interestaduais", internas, inter)
	if len(res.Errors) > 0 {
		msg += ". Erros: " + strings.Join(res.Errors[:min(5, len(res.Errors))], "; ")
	}
	if err := s.recordHistory(ctx, fonte, status, res.TotalRecords, msg, extractedAt); err != nil {
		s.logger.Warn("store: record history", "error", err)
	}
	s.logger.Info("store: snapshot ingested", "fonte", fonte, "status", status,
		"internas", internas, "interestaduais", inter, "errors", len(res.Errors))
	return res, nil
}

// ImportFile ingests the snapshot stored at path. A file that cannot be
// read is recorded in the history with status erro.
func (s *Store) ImportFile(ctx context.Context, path string) (*icms.IngestResult, error) {
	snap, err := snapshot.Read(path)
	if err != nil {
		if herr := s.recordHistory(ctx, "importacao_json", StatusError, 0, err.Error(), s.stamp()); herr != nil {
			s.logger.Warn("store: record history", "error", herr)
		}
		return nil, fmt.Errorf("store: import: %w", err)
	}
	return s.Ingest(ctx, snap)
}

func (s *Store) insertIntrastate(ctx context.Context, in icms.Intrastate, fonte, extractedAt string) (int, []string) {
	var (
		n    int
		errs []string
	)
	for _, st := range uf.All {
		v, ok := in[st]
		if !ok {
			continue
		}
		err := runTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`UPDATE aliquotas_internas SET ativo = 0 WHERE uf = ? AND ativo = 1`, string(st)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO aliquotas_internas (id, uf, aliquota, fonte, data_extracao, ativo, created_at)
				 VALUES (?, ?, ?, ?, ?, 1, ?)`,
				s.newID(), string(st), v, fonte, extractedAt, s.stamp())
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("Erro ao inserir %s: %v", st, err))
			continue
		}
		n++
	}
	return n, errs
}

type interRow struct {
	origin, dest uf.Code
	rate         float64
}

func (s *Store) insertInterstate(ctx context.Context, m icms.Matrix, fonte, extractedAt string) (int, []string) {
	var errs []string
	if _, err := s.db.ExecContext(ctx, `UPDATE aliquotas_interestaduais SET ativo = 0 WHERE ativo = 1`); err != nil {
		s.logger.Warn("store: deactivate interstate rows", "error", err)
	}

	var rows []interRow
	for _, o := range m.Origins() {
		dests := make([]uf.Code, 0, len(m[o]))
		for d := range m[o] {
			dests = append(dests, d)
		}
		uf.Sort(dests)
		for _, d := range dests {
			c := m[o][d]
			v, ok := c.Float()
			if !ok {
				errs = append(errs, fmt.Sprintf("Alíquota não numérica %s->%s: %q", o, d, c.String()))
				continue
			}
			rows = append(rows, interRow{o, d, v})
		}
	}

	n := 0
	for i := 0; i < len(rows); i += BatchSize {
		batch := rows[i:min(i+BatchSize, len(rows))]
		err := runTx(ctx, s.db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO aliquotas_interestaduais
				 (id, uf_origem, uf_destino, aliquota, fonte, data_extracao, ativo, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			created := s.stamp()
			for _, r := range batch {
				if _, err := stmt.ExecContext(ctx, s.newID(), string(r.origin), string(r.dest), r.rate, fonte, extractedAt, created); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("Erro no lote %d: %v", i/BatchSize+1, err))
			continue
		}
		n += len(batch)
	}
	return n, errs
}

func (s *Store) recordHistory(ctx context.Context, fonte, status string, total int, msg, extractedAt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO historico_atualizacoes
		 (id, fonte, status, total_registros_inseridos, mensagem, data_extracao, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.newID(), fonte, status, total, msg, extractedAt, s.stamp())
	return err
}
