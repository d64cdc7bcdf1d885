package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
)

var ErrInsufficientData = errors.New("optimizer: insufficient cross-day reviews")

type Config struct {
	Epochs        int     `mapstructure:"epochs"`
	MiniBatchSize int     `mapstructure:"mini_batch_size"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	MaxSeqLen     int     `mapstructure:"max_seq_len"`
	MinReviews    int     `mapstructure:"min_reviews"`
}

func DefaultConfig() Config {
	return Config{
		Epochs:        5,
		MiniBatchSize: 512,
		LearningRate:  0.04,
		MaxSeqLen:     64,
		MinReviews:    50,
	}
}

// Review is one ledger entry as seen by the optimizer.
type Review struct {
	CardID     uuid.UUID
	Rating     fsrs.Rating
	ReviewedAt time.Time
}

type Result struct {
	Parameters   fsrs.Parameters
	InitialLoss  float64
	Loss         float64
	CrossDay     int
	Epochs       int
	Insufficient bool
}

// Optimizer fits FSRS weights to a review history by minimising the binary
// cross-entropy between predicted retrievability and actual recall.
type Optimizer struct {
	cfg  Config
	base *fsrs.Scheduler
}

// New builds an optimizer that replays reviews with base's steps and
// retention, varying only the weights. Zero config fields take defaults.
func New(cfg Config, base *fsrs.Scheduler) *Optimizer {
	def := DefaultConfig()
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.MiniBatchSize <= 0 {
		cfg.MiniBatchSize = def.MiniBatchSize
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = def.MaxSeqLen
	}
	if cfg.MinReviews <= 0 {
		cfg.MinReviews = def.MinReviews
	}
	return &Optimizer{cfg: cfg, base: base}
}

type sample struct {
	rating      fsrs.Rating
	reviewedAt  time.Time
	elapsedDays float64
	label       float64
}

type dataset struct {
	ids   []uuid.UUID
	cards map[uuid.UUID][]sample
}

func buildDataset(reviews []Review, maxSeqLen int) dataset {
	groups := make(map[uuid.UUID][]Review)
	for _, r := range reviews {
		groups[r.CardID] = append(groups[r.CardID], r)
	}
	ds := dataset{cards: make(map[uuid.UUID][]sample, len(groups))}
	for id, rs := range groups {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].ReviewedAt.Before(rs[j].ReviewedAt) })
		if len(rs) > maxSeqLen {
			rs = rs[:maxSeqLen]
		}
		out := make([]sample, len(rs))
		for i, r := range rs {
			var elapsed float64
			if i > 0 {
				elapsed = r.ReviewedAt.Sub(rs[i-1].ReviewedAt).Hours() / 24.0
			}
			label := 1.0
			if r.Rating == fsrs.Again {
				label = 0
			}
			out[i] = sample{rating: r.Rating, reviewedAt: r.ReviewedAt, elapsedDays: elapsed, label: label}
		}
		ds.cards[id] = out
		ds.ids = append(ds.ids, id)
	}
	sort.Slice(ds.ids, func(i, j int) bool { return ds.ids[i].String() < ds.ids[j].String() })
	return ds
}

func (d dataset) crossDay() int {
	n := 0
	for _, s := range d.cards {
		for _, r := range s {
			if r.elapsedDays >= 1 {
				n++
			}
		}
	}
	return n
}

// Fit returns the best weights found. With fewer than MinReviews cross-day
// reviews it returns the starting weights and ErrInsufficientData.
func (o *Optimizer) Fit(ctx context.Context, start fsrs.Parameters, reviews []Review) (Result, error) {
	data := buildDataset(reviews, o.cfg.MaxSeqLen)
	res := Result{Parameters: start, CrossDay: data.crossDay()}
	if res.CrossDay < o.cfg.MinReviews {
		res.Insufficient = true
		return res, ErrInsufficientData
	}

	params := start.Clamp()
	res.InitialLoss = o.loss(params, data.ids, data)
	best, bestLoss := params, res.InitialLoss

	batchesPerEpoch := int(math.Ceil(float64(res.CrossDay) / float64(o.cfg.MiniBatchSize)))
	opt := newAdam(o.cfg.LearningRate)
	sched := &cosineAnnealing{lrMax: o.cfg.LearningRate, tMax: batchesPerEpoch * o.cfg.Epochs}
	rng := rand.New(rand.NewSource(42))
	ids := append([]uuid.UUID(nil), data.ids...)

	step := func(batch []uuid.UUID) {
		grad := o.gradient(params, batch, data)
		opt.lr = sched.lr()
		params = opt.update(params, grad).Clamp()
		sched.advance()
	}

	for epoch := 0; epoch < o.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

		var batch []uuid.UUID
		count := 0
		for _, id := range ids {
			batch = append(batch, id)
			for _, s := range data.cards[id] {
				if s.elapsedDays >= 1 {
					count++
				}
			}
			if count >= o.cfg.MiniBatchSize {
				step(batch)
				batch, count = nil, 0
			}
		}
		if count > 0 {
			step(batch)
		}

		if l := o.loss(params, data.ids, data); l < bestLoss {
			best, bestLoss = params, l
		}
		res.Epochs = epoch + 1
	}

	res.Parameters = best
	res.Loss = bestLoss
	return res, nil
}

const bceClamp = 1e-7

func bce(p, y float64) float64 {
	p = math.Max(bceClamp, math.Min(p, 1-bceClamp))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// loss is the mean BCE over cross-day reviews of graduated cards in ids.
func (o *Optimizer) loss(params fsrs.Parameters, ids []uuid.UUID, data dataset) float64 {
	s, err := o.base.WithParameters(params)
	if err != nil {
		return math.Inf(1)
	}
	var total float64
	var n int
	for _, id := range ids {
		samples := data.cards[id]
		if len(samples) == 0 {
			continue
		}
		card := fsrs.NewCard(samples[0].reviewedAt)
		for _, smp := range samples {
			if smp.elapsedDays >= 1 && card.Seeded() {
				total += bce(s.Retrievability(card, smp.reviewedAt), smp.label)
				n++
			}
			card, _, _ = s.Review(card, smp.rating, smp.reviewedAt)
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

const gradEps = 1e-5

// gradient uses central differences, one loss pair per weight. Probes are
// kept inside the weight bounds, so a weight sitting on a bound gets a
// one-sided difference.
func (o *Optimizer) gradient(params fsrs.Parameters, ids []uuid.UUID, data dataset) fsrs.Parameters {
	var g fsrs.Parameters
	for i := 0; i < fsrs.NumParameters; i++ {
		plus, minus := params, params
		plus[i] += gradEps
		minus[i] -= gradEps
		plus, minus = plus.Clamp(), minus.Clamp()
		h := plus[i] - minus[i]
		if h <= 0 {
			continue
		}
		g[i] = (o.loss(plus, ids, data) - o.loss(minus, ids, data)) / h
	}
	return g
}

// Loss exposes the objective for a full review history.
func (o *Optimizer) Loss(params fsrs.Parameters, reviews []Review) float64 {
	data := buildDataset(reviews, o.cfg.MaxSeqLen)
	return o.loss(params, data.ids, data)
}
