package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmatteo/changuito/internal/domain/storefront"
	"github.com/dmatteo/changuito/internal/vtex"
)

// maxConcurrentFetches caps in-flight term fetches per run and per refresh
// batch. The limit protects the upstream storefronts, not our CPU.
const maxConcurrentFetches = 30

// Mode selects what the orchestrator's input terms mean.
type Mode string

const (
	// ModeTerms treats inputs as free-text search terms (discovery).
	ModeTerms Mode = "terms"
	// ModeEANs treats each input as an exact EAN and re-probes the
	// storefront for known catalog members (count hint forced to 1).
	ModeEANs Mode = "eans"
)

// RunConfig describes one aggregation run for one storefront.
type RunConfig struct {
	Storefront storefront.Config
	Terms      []string
	Mode       Mode
}

// Summary is the structured result of one aggregation run.
type Summary struct {
	RunID  string
	Source string
	// TotalProducts counts unique EANs discovered across all terms.
	TotalProducts   int
	SavedProducts   int
	SkippedProducts int
	FailedTerms     int
	Products        []vtex.Product
	StartedAt       time.Time
	Duration        time.Duration
}

// Orchestrator drives full discovery runs: fetch, normalize, dedup,
// reconcile.
type Orchestrator struct {
	client      *vtex.Client
	storefronts storefront.Repository
	reconciler  func(role storefront.Role) Reconciler
	lg          *zap.Logger
}

// NewOrchestrator wires an Orchestrator. reconciler is a factory so each run
// picks the strategy matching its storefront's role.
func NewOrchestrator(
	client *vtex.Client,
	storefronts storefront.Repository,
	reconciler func(role storefront.Role) Reconciler,
	lg *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		client:      client,
		storefronts: storefronts,
		reconciler:  reconciler,
		lg:          lg,
	}
}

// Run executes one aggregation run. Individual term failures reduce the
// result but never abort the run; only failing to resolve the storefront
// identity is fatal.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*Summary, error) {
	started := time.Now()
	lg := o.lg.With(zap.String("storefront", cfg.Storefront.Name))

	sf, err := o.storefronts.GetOrCreate(ctx, cfg.Storefront.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve storefront %s", cfg.Storefront.Name)
	}

	count := cfg.Storefront.Count
	if cfg.Mode == ModeEANs {
		count = 1
	}

	source := sourceName(cfg.Storefront.Name)
	rec := o.reconciler(cfg.Storefront.Role)
	seen := newRunSet()

	var (
		mu      sync.Mutex
		saved   int
		skipped int
		failed  int
	)

	lg.Info("aggregation run started",
		zap.Int("terms", len(cfg.Terms)),
		zap.String("mode", string(cfg.Mode)),
	)

	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentFetches)
	for _, term := range cfg.Terms {
		g.Go(func() error {
			raws, err := o.client.Search(ctx, cfg.Storefront.BaseURL, term, count)
			if err != nil {
				lg.Debug("term fetch failed", zap.String("term", term), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			var localSaved, localSkipped int
			for i := range raws {
				p := vtex.Normalize(&raws[i], cfg.Storefront.BaseURL, source)
				if p == nil {
					continue
				}
				// First occurrence of an EAN in the run wins;
				// later ones are dropped before reconciliation.
				if !seen.add(*p) {
					continue
				}
				switch res := rec.Reconcile(ctx, p, sf.ID); {
				case res.Saved:
					localSaved++
				case res.Reason == ReasonNotInMaster:
					localSkipped++
				}
			}

			mu.Lock()
			saved += localSaved
			skipped += localSkipped
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	products := seen.values()
	s := &Summary{
		RunID:           uuid.New().String(),
		Source:          source,
		TotalProducts:   len(products),
		SavedProducts:   saved,
		SkippedProducts: skipped,
		FailedTerms:     failed,
		Products:        products,
		StartedAt:       started,
		Duration:        time.Since(started),
	}

	lg.Info("aggregation run finished",
		zap.String("run_id", s.RunID),
		zap.Int("total", s.TotalProducts),
		zap.Int("saved", s.SavedProducts),
		zap.Int("skipped", s.SkippedProducts),
		zap.Int("failed_terms", s.FailedTerms),
		zap.Duration("took", s.Duration),
	)
	return s, nil
}

// runSet is the run-scoped deduplication map. Insertions are first-wins:
// concurrent tasks race, exactly one wins per EAN, and the winner's record
// is the one kept and reconciled.
type runSet struct {
	mu    sync.Mutex
	byEAN map[string]vtex.Product
	order []string
}

func newRunSet() *runSet {
	return &runSet{byEAN: make(map[string]vtex.Product)}
}

// add inserts p if its EAN has not been seen in this run, reporting whether
// the insert happened.
func (s *runSet) add(p vtex.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEAN[p.EAN]; ok {
		return false
	}
	s.byEAN[p.EAN] = p
	s.order = append(s.order, p.EAN)
	return true
}

// values returns the kept products in first-seen order.
func (s *runSet) values() []vtex.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vtex.Product, 0, len(s.order))
	for _, ean := range s.order {
		out = append(out, s.byEAN[ean])
	}
	return out
}

func sourceName(storefrontName string) string {
	return strings.ToLower(storefrontName)
}
