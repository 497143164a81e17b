package store

// Rows are never updated in place except to clear ativo; a new import
// deactivates the previous rows and inserts fresh ones.
const schema = `
CREATE TABLE IF NOT EXISTS aliquotas_internas (
	id            TEXT PRIMARY KEY,
	uf            TEXT NOT NULL,
	aliquota      REAL NOT NULL,
	fonte         TEXT NOT NULL,
	data_extracao TEXT NOT NULL,
	ativo         INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_internas_uf ON aliquotas_internas(uf, ativo);

CREATE TABLE IF NOT EXISTS aliquotas_interestaduais (
	id            TEXT PRIMARY KEY,
	uf_origem     TEXT NOT NULL,
	uf_destino    TEXT NOT NULL,
	aliquota      REAL NOT NULL,
	fonte         TEXT NOT NULL,
	data_extracao TEXT NOT NULL,
	ativo         INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inter_par ON aliquotas_interestaduais(uf_origem, uf_destino, ativo);

CREATE TABLE IF NOT EXISTS historico_atualizacoes (
	id                        TEXT PRIMARY KEY,
	fonte                     TEXT NOT NULL,
	status                    TEXT NOT NULL CHECK (status IN ('sucesso', 'parcial', 'erro')),
	total_registros_inseridos INTEGER NOT NULL DEFAULT 0,
	mensagem                  TEXT NOT NULL DEFAULT '',
	data_extracao             TEXT NOT NULL,
	created_at                TEXT NOT NULL
);
`
