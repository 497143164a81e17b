// Package calc implements the ICMS and DIFAL arithmetic over a rate
// matrix. A pair that is missing or holds text is "rate unavailable".
package calc

import (
	"errors"
	"fmt"
	"math"

	"github.com/hazyhaar/icmsnap/uf"
)

var (
	ErrInvalidAmount   = errors.New("calc: amount must be greater than zero")
	ErrUnknownState    = errors.New("calc: unknown state")
	ErrSameState       = errors.New("calc: DIFAL does not apply within one state")
	ErrRateUnavailable = errors.New("calc: rate unavailable")
)

// Rates looks up numeric rates. icms.Matrix implements it.
type Rates interface {
	Rate(origin, dest uf.Code) (float64, bool)
}

// Kind of operation.
const (
	Internal   = "interna"
	Interstate = "interestadual"
)

// ICMSResult is the ICMS due on one operation.
type ICMSResult struct {
	Origin      uf.Code `json:"origem"`
	Destination uf.Code `json:"destino"`
	Amount      float64 `json:"valor_operacao"`
	Rate        float64 `json:"aliquota_percentual"`
	Tax         float64 `json:"valor_icms"`
	Total       float64 `json:"valor_com_icms"`
	Kind        string  `json:"tipo"`
}

// DIFALResult is the rate differential due to the destination state.
type DIFALResult struct {
	Origin           uf.Code `json:"origem"`
	Destination      uf.Code `json:"destino"`
	Amount           float64 `json:"valor_operacao"`
	InterstateRate   float64 `json:"aliquota_interestadual"`
	DestinationRate  float64 `json:"aliquota_interna_destino"`
	Differential     float64 `json:"diferencial_aliquota"`
	DIFAL            float64 `json:"valor_difal"`
	OriginTax        float64 `json:"valor_icms_origem"`
	DestinationTotal float64 `json:"valor_icms_total"`
}

// ICMS computes amount × rate(origin, dest) / 100.
func ICMS(r Rates, origin, dest uf.Code, amount float64) (*ICMSResult, error) {
	if err := check(origin, dest, amount); err != nil {
		return nil, err
	}
	rate, err := lookup(r, origin, dest)
	if err != nil {
		return nil, err
	}
	tax := amount * rate / 100
	kind := Interstate
	if origin == dest {
		kind = Internal
	}
	return &ICMSResult{
		Origin:      origin,
		Destination: dest,
		Amount:      amount,
		Rate:        rate,
		Tax:         Round2(tax),
		Total:       Round2(amount + tax),
		Kind:        kind,
	}, nil
}

// DIFAL computes amount × (rate(dest, dest) − rate(origin, dest)) / 100.
func DIFAL(r Rates, origin, dest uf.Code, amount float64) (*DIFALResult, error) {
	if origin == dest {
		return nil, ErrSameState
	}
	if err := check(origin, dest, amount); err != nil {
		return nil, err
	}
	inter, err := lookup(r, origin, dest)
	if err != nil {
		return nil, err
	}
	internal, err := lookup(r, dest, dest)
	if err != nil {
		return nil, err
	}
	diff := internal - inter
	return &DIFALResult{
		Origin:           origin,
		Destination:      dest,
		Amount:           amount,
		InterstateRate:   inter,
		DestinationRate:  internal,
		Differential:     Round2(diff),
		DIFAL:            Round2(amount * diff / 100),
		OriginTax:        Round2(amount * inter / 100),
		DestinationTotal: Round2(amount * internal / 100),
	}, nil
}

func check(origin, dest uf.Code, amount float64) error {
	if !origin.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, origin)
	}
	if !dest.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, dest)
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

func lookup(r Rates, origin, dest uf.Code) (float64, error) {
	v, ok := r.Rate(origin, dest)
	if !ok {
		return 0, fmt.Errorf("%w: %s->%s", ErrRateUnavailable, origin, dest)
	}
	return v, nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
