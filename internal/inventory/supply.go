package inventory

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/roach88/labsync/internal/doc"
)

// Supply field names.
const (
	FieldQty           = "qty"
	FieldMinQty        = "minQty"
	FieldBurnPerWeek   = "burnPerWeek"
	FieldLeadTimeWeeks = "leadTimeWeeks"
)

// Level classifies stock against its minimum.
type Level string

const (
	LevelOut      Level = "out"
	LevelCritical Level = "critical"
	LevelLow      Level = "low"
	LevelOK       Level = "ok"
)

// rank orders levels by urgency, most urgent first.
func (l Level) rank() int {
	switch l {
	case LevelOut:
		return 0
	case LevelCritical:
		return 1
	case LevelLow:
		return 2
	default:
		return 3
	}
}

// Supply is the stock view of a supplies entity.
type Supply struct {
	ID            string
	Name          string
	Qty           int64
	MinQty        int64
	BurnPerWeek   int64
	LeadTimeWeeks int64
}

// SupplyFrom reads a supplies entity. qty and minQty are required; the
// rest default to zero.
func SupplyFrom(e doc.Entity) (Supply, error) {
	s := Supply{ID: e.ID, Name: e.StringField(doc.FieldName)}
	var ok bool
	if s.Qty, ok = e.IntField(FieldQty); !ok {
		return Supply{}, fmt.Errorf("supply %s: missing integer %s", e.ID, FieldQty)
	}
	if s.MinQty, ok = e.IntField(FieldMinQty); !ok {
		return Supply{}, fmt.Errorf("supply %s: missing integer %s", e.ID, FieldMinQty)
	}
	s.BurnPerWeek, _ = e.IntField(FieldBurnPerWeek)
	s.LeadTimeWeeks, _ = e.IntField(FieldLeadTimeWeeks)
	if s.Qty < 0 || s.MinQty < 0 || s.BurnPerWeek < 0 || s.LeadTimeWeeks < 0 {
		return Supply{}, fmt.Errorf("supply %s: negative quantity", e.ID)
	}
	return s, nil
}

// Health is the stock bar shown for a supply.
type Health struct {
	Percent int64 `json:"percent"`
	Level   Level `json:"level"`
}

// StockHealth returns qty as a percentage of minQty, capped at 100, and
// its level. A supply with no minimum is always healthy unless empty.
func StockHealth(s Supply) Health {
	if s.Qty <= 0 {
		return Health{Percent: 0, Level: LevelOut}
	}
	if s.MinQty <= 0 || s.Qty >= s.MinQty {
		return Health{Percent: 100, Level: LevelOK}
	}
	// qty < minQty keeps the quotient below 100; the product needs 128 bits.
	hi, lo := bits.Mul64(uint64(s.Qty), 100)
	q, _ := bits.Div64(hi, lo, uint64(s.MinQty))
	pct := int64(q)
	switch {
	case pct < 50:
		return Health{Percent: pct, Level: LevelCritical}
	case pct < 100:
		return Health{Percent: pct, Level: LevelLow}
	default:
		return Health{Percent: pct, Level: LevelOK}
	}
}

// WeeksOfCover returns how many whole weeks the current stock lasts.
// ok is false when nothing is consumed, i.e. cover is unbounded.
func WeeksOfCover(s Supply) (weeks int64, ok bool) {
	if s.BurnPerWeek <= 0 {
		return 0, false
	}
	return s.Qty / s.BurnPerWeek, true
}

// Policy tunes reorder suggestions.
type Policy struct {
	// CoverWeeks is the stock to hold beyond the lead time.
	CoverWeeks int64 `yaml:"cover_weeks" env:"COVER_WEEKS"`
	// DefaultLeadTimeWeeks applies to supplies without a lead time.
	DefaultLeadTimeWeeks int64 `yaml:"default_lead_time_weeks" env:"DEFAULT_LEAD_TIME_WEEKS"`
}

// DefaultPolicy holds two weeks of cover past a one-week lead time.
var DefaultPolicy = Policy{CoverWeeks: 2, DefaultLeadTimeWeeks: 1}

// Reorder reasons.
const (
	ReasonOut      = "out of stock"
	ReasonBelowMin = "below minimum"
	ReasonAtMin    = "at minimum"
	ReasonLeadTime = "runs out within lead time"
)

// Suggestion is a proposed order for one supply.
type Suggestion struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Qty    int64  `json:"qty"`
	Reason string `json:"reason"`
	Health Health `json:"health"`
}

// Target returns the stock level a reorder tops up to:
// minQty + burnPerWeek * (leadTimeWeeks + coverWeeks), saturating at
// math.MaxInt64.
func Target(s Supply, p Policy) int64 {
	lead := s.LeadTimeWeeks
	if lead == 0 {
		lead = p.DefaultLeadTimeWeeks
	}
	return addSat(s.MinQty, mulSat(s.BurnPerWeek, addSat(lead, p.CoverWeeks)))
}

// addSat and mulSat work on non-negative operands.
func addSat(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func mulSat(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// SuggestReorder proposes an order when stock is below target or at or
// below its minimum. ok is false when no order is needed.
func SuggestReorder(s Supply, p Policy) (Suggestion, bool) {
	target := Target(s, p)
	if s.Qty >= target && s.Qty > s.MinQty {
		return Suggestion{}, false
	}

	var reason string
	switch {
	case s.Qty == 0:
		reason = ReasonOut
	case s.Qty < s.MinQty:
		reason = ReasonBelowMin
	case s.Qty == s.MinQty:
		reason = ReasonAtMin
	default:
		reason = ReasonLeadTime
	}
	return Suggestion{
		ID:     s.ID,
		Name:   s.Name,
		Qty:    max(target-s.Qty, 1),
		Reason: reason,
		Health: StockHealth(s),
	}, true
}

// ReorderReport returns a suggestion for every supply that needs one,
// most urgent first: by level, then percent, then id.
func ReorderReport(entities []doc.Entity, p Policy) ([]Suggestion, error) {
	out := []Suggestion{}
	for _, e := range entities {
		s, err := SupplyFrom(e)
		if err != nil {
			return nil, fmt.Errorf("reorder report: %w", err)
		}
		if sg, ok := SuggestReorder(s, p); ok {
			out = append(out, sg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Health, out[j].Health
		if a.Level.rank() != b.Level.rank() {
			return a.Level.rank() < b.Level.rank()
		}
		if a.Percent != b.Percent {
			return a.Percent < b.Percent
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
