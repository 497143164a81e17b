package ratesapi

import (
	"context"
	"net/http"

	"github.com/hazyhaar/icmsnap/runner"
	"github.com/hazyhaar/icmsnap/uf"
)

// Updater runs one extraction and imports the snapshot into the store the
// API reads from.
type Updater func(ctx context.Context) (*runner.Report, error)

var routeDocs = map[string]map[string]string{
	"informacao": {
		"/":         "GET - Informações da API",
		"/health":   "GET - Status da API e conexão com banco",
		"/api/info": "GET - Metadados e estatísticas da base de dados",
	},
	"consultas": {
		"/api/estados":                 "GET - Lista todos os estados",
		"/api/estados/{uf}":            "GET - Informações de um estado específico",
		"/api/aliquotas/interna/{uf}":  "GET - Alíquota interna de um estado",
		"/api/aliquotas/internas":      "GET - Todas as alíquotas internas",
		"/api/aliquotas/interestadual": "GET - Alíquota entre dois estados (params: origem, destino)",
		"/api/aliquotas/matriz":        "GET - Matriz completa de alíquotas",
		"/api/historico":               "GET - Histórico de atualizações",
	},
	"calculos": {
		"/api/calcular/icms":  "POST - Calcula valor do ICMS",
		"/api/calcular/difal": "POST - Calcula DIFAL (Diferencial de Alíquota)",
	},
	"admin": {
		"/api/admin/atualizar": "POST - Executa a extração e atualiza os dados",
	},
}

func (a *API) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"nome":         "API de Alíquotas ICMS",
		"descricao":    "Consulta e cálculo de alíquotas ICMS interestaduais",
		"documentacao": routeDocs,
		"atualizacao":  a.update != nil,
	})
}

// handleInfo reports row counts and the latest import.
func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	internal, err := a.rates.Intrastate(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.rates.Matrix(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	hist, err := a.rates.History(ctx, 1)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	out := map[string]any{
		"estatisticas": map[string]int{
			"total_estados":                  uf.Count,
			"total_aliquotas_internas":       len(internal),
			"total_aliquotas_interestaduais": m.CellCount(),
		},
		"ultima_atualizacao": nil,
		"fonte":              nil,
		"timestamp":          a.stamp(),
	}
	if len(hist) > 0 {
		out["ultima_atualizacao"] = hist[0].CreatedAt
		out["fonte"] = hist[0].Source
		out["status"] = hist[0].Status
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpdate runs the configured Updater. One update runs at a time; a
// second request while one is in flight gets 409.
func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if a.update == nil {
		jsonErr(w, "atualização não configurada neste servidor", http.StatusNotImplemented)
		return
	}
	if !a.updating.TryLock() {
		jsonErr(w, "atualização já em andamento", http.StatusConflict)
		return
	}
	defer a.updating.Unlock()

	log := loggerFrom(r.Context())
	log.Info("ratesapi: update started")
	rep, err := a.update(r.Context())
	if err != nil {
		log.Error("ratesapi: update failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "error",
			"message":   "Falha ao atualizar dados",
			"error":     err.Error(),
			"timestamp": a.stamp(),
		})
		return
	}

	ing := rep.Ingest
	if ing == nil || !ing.Success {
		errs := []string{"snapshot não importado"}
		if ing != nil {
			errs = ing.Errors
		}
		log.Error("ratesapi: update import failed", "errors", len(errs))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "error",
			"message":   "Falha ao atualizar dados",
			"erros":     errs,
			"timestamp": a.stamp(),
		})
		return
	}

	md := rep.Snapshot.Metadata
	log.Info("ratesapi: update done", "records", ing.TotalRecords, "used", md.Used)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Dados atualizados com sucesso",
		"data": map[string]any{
			"total_registros":      ing.TotalRecords,
			"total_internas":       ing.TotalIntrastate,
			"total_interestaduais": ing.TotalInterstate,
			"fontes_utilizadas":    md.Used,
			"avisos":               len(md.Errors),
			"arquivo":              rep.Path,
		},
		"timestamp": a.stamp(),
	})
}
