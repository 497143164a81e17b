package icms

import (
	"context"
	"time"
)

// Snapshot is the reconciled output of one extraction run. Callers must
// treat it as read-only.
type Snapshot struct {
	Matrix     Matrix                `json:"matriz_interestadual"`
	Intrastate Intrastate            `json:"aliquotas_internas"`
	BySource   map[string]Intrastate `json:"aliquotas_internas_por_fonte"`
	Metadata   Metadata              `json:"metadata"`

	// Warnings keeps the structured form of Metadata.Errors in process.
	Warnings []Warning `json:"-"`
}

// Metadata describes the run that produced a snapshot.
type Metadata struct {
	Consulted   []string   `json:"fontes_consultadas"`
	Used        []string   `json:"fontes_utilizadas"`
	ExtractedAt time.Time  `json:"data_extracao"`
	TotalStates int        `json:"total_estados"`
	TotalRates  int        `json:"total_aliquotas"`
	Errors      []string   `json:"erros"`
	Conflicts   []Conflict `json:"conflitos"`
}

// IngestResult is what the import layer reports back.
type IngestResult struct {
	Success         bool     `json:"sucesso"`
	TotalRecords    int      `json:"total_registros"`
	TotalIntrastate int      `json:"total_internas"`
	TotalInterstate int      `json:"total_interestaduais"`
	Errors          []string `json:"erros"`
}

// Ingester is implemented by the persistence layer. The extraction core
// only hands snapshots over; it never talks to storage itself.
type Ingester interface {
	Ingest(ctx context.Context, snap *Snapshot) (*IngestResult, error)
}
