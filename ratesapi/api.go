// Package ratesapi serves stored ICMS rates and the ICMS/DIFAL calculators
// over HTTP (chi) and as MCP tools.
package ratesapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/icmsnap/calc"
	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/store"
	"github.com/hazyhaar/icmsnap/uf"
)

// Backend is the read side of the rate store. *store.Store implements it.
type Backend interface {
	Rate(ctx context.Context, origin, dest uf.Code) (*store.InterstateRate, error)
	Intrastate(ctx context.Context) ([]store.IntrastateRate, error)
	IntrastateFor(ctx context.Context, st uf.Code) (*store.IntrastateRate, error)
	Matrix(ctx context.Context) (icms.Matrix, error)
	History(ctx context.Context, limit int) ([]store.HistoryEntry, error)
	Ping(ctx context.Context) error
}

// API holds the handlers.
type API struct {
	rates    Backend
	logger   *slog.Logger
	now      func() time.Time
	update   Updater
	updating sync.Mutex
}

// Option configures an API.
type Option func(*API)

// WithUpdater enables POST /api/admin/atualizar.
func WithUpdater(u Updater) Option {
	return func(a *API) { a.update = u }
}

// New returns an API over rates. logger may be nil.
func New(rates Backend, logger *slog.Logger, opts ...Option) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{rates: rates, logger: logger, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handler returns the chi router with every route mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(headToGet, cors, maxBody(64<<10), traceRequests(a.logger))
	a.RegisterHTTP(r)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, "rota não encontrada", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, "método HTTP não permitido", http.StatusMethodNotAllowed)
	})
	return r
}

// RegisterHTTP mounts the routes on r.
func (a *API) RegisterHTTP(r chi.Router) {
	r.Get("/", a.handleIndex)
	r.Get("/health", a.handleHealth)
	r.Get("/api/info", a.handleInfo)
	r.Get("/api/estados", a.handleStates)
	r.Get("/api/estados/{uf}", a.handleState)
	r.Get("/api/aliquotas/internas", a.handleIntrastateList)
	r.Get("/api/aliquotas/interna/{uf}", a.handleIntrastate)
	r.Get("/api/aliquotas/interestadual", a.handleInterstate)
	r.Get("/api/aliquotas/matriz", a.handleMatrix)
	r.Get("/api/historico", a.handleHistory)
	r.Post("/api/calcular/icms", a.handleICMS)
	r.Post("/api/calcular/difal", a.handleDIFAL)
	r.Post("/api/admin/atualizar", a.handleUpdate)
}

func (a *API) stamp() string { return a.now().Format(time.RFC3339) }

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.rates.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "database": "disconnected", "error": err.Error(), "timestamp": a.stamp(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy", "database": "connected", "timestamp": a.stamp(),
	})
}

type stateInfo struct {
	State    uf.Code  `json:"uf"`
	Name     string   `json:"nome"`
	Internal *float64 `json:"aliquota_interna,omitempty"`
}

func (a *API) handleStates(w http.ResponseWriter, _ *http.Request) {
	out := make([]stateInfo, 0, uf.Count)
	for _, st := range uf.All {
		out = append(out, stateInfo{State: st, Name: st.Name()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "total": len(out), "timestamp": a.stamp()})
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	st, ok := uf.Parse(chi.URLParam(r, "uf"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "estado '" + chi.URLParam(r, "uf") + "' não encontrado", "valid_ufs": uf.All,
		})
		return
	}
	info := stateInfo{State: st, Name: st.Name()}
	in, err := a.rates.IntrastateFor(r.Context(), st)
	switch {
	case err == nil:
		info.Internal = &in.Rate
	case !errors.Is(err, store.ErrNotFound):
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": info, "timestamp": a.stamp()})
}

func (a *API) handleIntrastateList(w http.ResponseWriter, r *http.Request) {
	list, err := a.rates.Intrastate(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "detailed" {
		if list == nil {
			list = []store.IntrastateRate{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": list, "total": len(list), "timestamp": a.stamp()})
		return
	}
	simple := make(map[uf.Code]float64, len(list))
	for _, in := range list {
		simple[in.State] = in.Rate
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": simple, "total": len(simple), "timestamp": a.stamp()})
}

func (a *API) handleIntrastate(w http.ResponseWriter, r *http.Request) {
	st, ok := uf.Parse(chi.URLParam(r, "uf"))
	if !ok {
		jsonErr(w, "estado desconhecido: "+chi.URLParam(r, "uf"), http.StatusNotFound)
		return
	}
	in, err := a.rates.IntrastateFor(r.Context(), st)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, "alíquota interna não encontrada para o estado '"+string(st)+"'", http.StatusNotFound)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"uf": in.State, "aliquota": in.Rate, "fonte": in.Source, "tipo": calc.Internal,
		},
		"timestamp": a.stamp(),
	})
}

func (a *API) handleInterstate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("origem") == "" || q.Get("destino") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "parâmetros 'origem' e 'destino' são obrigatórios",
			"example": "/api/aliquotas/interestadual?origem=SP&destino=RJ",
		})
		return
	}
	origin, ok1 := uf.Parse(q.Get("origem"))
	dest, ok2 := uf.Parse(q.Get("destino"))
	if !ok1 || !ok2 {
		jsonErr(w, "estado desconhecido", http.StatusBadRequest)
		return
	}
	rate, err := a.rates.Rate(r.Context(), origin, dest)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, "alíquota não encontrada para a operação "+string(origin)+" → "+string(dest), http.StatusNotFound)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	kind := calc.Interstate
	if origin == dest {
		kind = calc.Internal
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"origem": rate.Origin, "destino": rate.Destination, "aliquota": rate.Rate,
			"fonte": rate.Source, "tipo": kind,
		},
		"timestamp": a.stamp(),
	})
}

type pairRate struct {
	Origin      uf.Code   `json:"origem"`
	Destination uf.Code   `json:"destino"`
	Rate        icms.Cell `json:"aliquota"`
}

func (a *API) handleMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := a.rates.Matrix(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "list" {
		list := []pairRate{}
		for _, o := range m.Origins() {
			for _, d := range uf.All {
				if c, ok := m.Get(o, d); ok {
					list = append(list, pairRate{o, d, c})
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": list, "total": len(list), "timestamp": a.stamp()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":              m,
		"total_estados":     len(m),
		"total_combinacoes": m.CellCount(),
		"timestamp":         a.stamp(),
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	h, err := a.rates.History(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if h == nil {
		h = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": h, "total": len(h), "timestamp": a.stamp()})
}

// CalcRequest is the body of both calculators.
type CalcRequest struct {
	Origin      string  `json:"origem"`
	Destination string  `json:"destino"`
	Amount      float64 `json:"valor_operacao"`
}

func (a *API) handleICMS(w http.ResponseWriter, r *http.Request) {
	a.handleCalc(w, r, func(ctx context.Context, req CalcRequest) (any, error) {
		return a.ICMS(ctx, req)
	})
}

func (a *API) handleDIFAL(w http.ResponseWriter, r *http.Request) {
	a.handleCalc(w, r, func(ctx context.Context, req CalcRequest) (any, error) {
		return a.DIFAL(ctx, req)
	})
}

func (a *API) handleCalc(w http.ResponseWriter, r *http.Request, fn func(context.Context, CalcRequest) (any, error)) {
	var req CalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "body JSON inválido: " + err.Error(),
			"example": CalcRequest{Origin: "SP", Destination: "RJ", Amount: 1000},
		})
		return
	}
	res, err := fn(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, calc.ErrRateUnavailable):
			jsonErr(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, calc.ErrInvalidAmount), errors.Is(err, calc.ErrUnknownState), errors.Is(err, calc.ErrSameState):
			jsonErr(w, err.Error(), http.StatusBadRequest)
		default:
			a.fail(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": res, "timestamp": a.stamp()})
}

// ICMS computes the ICMS of req against the active matrix.
func (a *API) ICMS(ctx context.Context, req CalcRequest) (*calc.ICMSResult, error) {
	m, err := a.rates.Matrix(ctx)
	if err != nil {
		return nil, err
	}
	o, d := parsePair(req)
	return calc.ICMS(m, o, d, req.Amount)
}

// DIFAL computes the DIFAL of req against the active matrix.
func (a *API) DIFAL(ctx context.Context, req CalcRequest) (*calc.DIFALResult, error) {
	m, err := a.rates.Matrix(ctx)
	if err != nil {
		return nil, err
	}
	o, d := parsePair(req)
	return calc.DIFAL(m, o, d, req.Amount)
}

// parsePair upper-cases the codes; invalid ones are rejected by calc.
func parsePair(req CalcRequest) (uf.Code, uf.Code) {
	o, _ := uf.Parse(req.Origin)
	d, _ := uf.Parse(req.Destination)
	return o, d
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	loggerFrom(r.Context()).Error("ratesapi: request failed", "error", err)
	jsonErr(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
