// Package permuter evaluates every combination of pipeline step variants
// with nested cross-validation.
//
// For each pipeline definition and each outer fold, an inner
// hyperparameter search (grid or random) tunes the pipeline on the outer
// training rows; the tuned pipeline is then scored on the outer test rows.
// Units run in parallel and fail independently. Results are kept in a
// table that the views in results.go aggregate.
//
// Example:
//
//	p, err := permuter.New(
//	    permuter.StepCatalog{
//	        {Name: "scaler", Variants: []permuter.Variant{{Name: "standard", Estimator: preprocessing.NewStandardScaler()}}},
//	        {Name: "clf", Variants: []permuter.Variant{
//	            {Name: "knn", Estimator: neighbors.NewKNeighborsClassifier()},
//	            {Name: "logreg", Estimator: linear_model.NewLogisticRegression()},
//	        }},
//	    },
//	    permuter.ParamCatalog{"knn": model_selection.Grid(model_selection.ParamGrid{"n_neighbors": {3, 5}})},
//	    nil,
//	    permuter.WithNJobs(4),
//	)
//	err = p.Fit(ctx, X, y, model_selection.NewKFold(5), model_selection.NewKFold(3))
//	scores, err := p.MeanScores()
package permuter

import (
	"math/rand/v2"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/pipeperm/pkg/log"
)

// Option configures a Permuter.
type Option func(*Permuter)

// WithSeed sets the base seed from which per-unit seeds are derived.
func WithSeed(seed uint64) Option {
	return func(p *Permuter) {
		p.seed = seed
	}
}

// WithNJobs bounds the number of units evaluated concurrently.
// Values <= 0 use one worker per CPU.
func WithNJobs(n int) Option {
	return func(p *Permuter) {
		p.nJobs = n
	}
}

// WithLogger sets the logger used for run and unit records.
func WithLogger(l log.Logger) Option {
	return func(p *Permuter) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics registers the permuter's prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Permuter) {
		if reg != nil {
			p.metrics = newRunMetrics(reg)
		}
	}
}

// Permuter enumerates pipeline definitions and evaluates them with nested
// cross-validation. Views are safe to call concurrently with each other; a
// Fit in progress does not disturb them until it completes.
type Permuter struct {
	cat  *catalogs
	defs []Definition

	seed    uint64
	nJobs   int
	logger  log.Logger
	metrics *runMetrics

	mu    sync.RWMutex
	table *ResultTable
}

// New validates the catalogs and enumerates the pipeline definitions.
// Catalog problems are reported as ConfigurationError before any fitting.
// The catalogs are copied; estimators are used as templates and cloned per
// evaluation unit.
func New(steps StepCatalog, params ParamCatalog, search SearchCatalog, opts ...Option) (*Permuter, error) {
	cat, err := validate(steps, params, search)
	if err != nil {
		return nil, err
	}

	p := &Permuter{
		cat:    cat,
		nJobs:  1,
		logger: log.GetLoggerWithName("permuter"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.defs = cat.enumerate()
	return p, nil
}

// Definitions returns the pipeline definitions in enumeration order.
func (p *Permuter) Definitions() []Definition {
	out := make([]Definition, len(p.defs))
	for i, d := range p.defs {
		out[i] = d.clone()
	}
	return out
}

// NumDefinitions returns the number of pipeline definitions.
func (p *Permuter) NumDefinitions() int {
	return len(p.defs)
}

// Classification reports whether every final-step variant is a classifier.
func (p *Permuter) Classification() bool {
	return p.cat.classification()
}

func (p *Permuter) snapshot() *ResultTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table
}

func (p *Permuter) replace(t *ResultTable) {
	p.mu.Lock()
	p.table = t
	p.mu.Unlock()
}

// unitSeed derives the search seed of one unit from the base seed and the
// unit's position, so results do not depend on scheduling.
func unitSeed(base uint64, defIdx, foldIdx int) uint64 {
	r := rand.New(rand.NewPCG(base, uint64(defIdx)<<32|uint64(uint32(foldIdx))))
	return r.Uint64()
}

// baseSeed returns the seed a definition's units derive from.
func (p *Permuter) baseSeed(d Definition) uint64 {
	if rs := d.search.RandomState; rs != nil {
		return *rs
	}
	return p.seed
}
