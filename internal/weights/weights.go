// Package weights implements fairness-weighted partner bookkeeping over the
// durable store: every identity carries a count of prior introductions, and
// partner selection always draws from the least-introduced tier.
package weights

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

// WeightStore manages one mode's partition of participant weights and its
// roster.
type WeightStore struct {
	store     store.Store
	partition string
	rnd       *rand.Rand
	log       zerolog.Logger
}

// Option configures a WeightStore.
type Option func(*WeightStore)

// WithRand injects the random source used for tie-breaking. Tests pass a
// seeded source for determinism.
func WithRand(rnd *rand.Rand) Option {
	return func(w *WeightStore) { w.rnd = rnd }
}

// New returns a WeightStore for the given partition (meeting mode).
func New(st store.Store, partition string, log zerolog.Logger, opts ...Option) *WeightStore {
	w := &WeightStore{
		store:     st,
		partition: partition,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log.With().Str("partition", partition).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnsurePresent creates a weight-0 record for the identity when absent.
func (w *WeightStore) EnsurePresent(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := w.store.Participants().EnsurePresent(ctx, w.partition, email); err != nil {
		return errors.Wrapf(err, "ensure %s", email)
	}
	return nil
}

// SelectFairPartner picks one roster member outside exclude: it computes the
// minimum stored weight over the candidates (missing record counts as 0) and
// chooses uniformly at random among candidates at that minimum. Returns
// model.ErrNoPartner when no candidate remains.
func (w *WeightStore) SelectFairPartner(ctx context.Context, exclude map[string]struct{}) (string, error) {
	members, err := w.store.Rosters().Get(ctx, w.partition)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrNoPartner
		}
		return "", errors.Wrap(err, "load roster")
	}

	// Exclusion compares lower-cased identities on both sides; callers are
	// not trusted to pre-normalize.
	excluded := make(map[string]struct{}, len(exclude))
	for e := range exclude {
		excluded[strings.ToLower(e)] = struct{}{}
	}

	var candidates []string
	for _, m := range members {
		if _, skip := excluded[strings.ToLower(m)]; !skip {
			candidates = append(candidates, strings.ToLower(m))
		}
	}
	if len(candidates) == 0 {
		return "", model.ErrNoPartner
	}

	stored, err := w.store.Participants().Weights(ctx, w.partition, candidates)
	if err != nil {
		// A candidate must never be dropped because its weight could not be
		// read; unknown weights count as 0 (maximal fairness priority).
		w.log.Warn().Err(err).Msg("weight lookup failed, treating all candidates as weight 0")
		stored = map[string]int64{}
	}

	minWeight := int64(-1)
	for _, c := range candidates {
		weight := stored[c]
		if minWeight < 0 || weight < minWeight {
			minWeight = weight
		}
	}

	var tier []string
	for _, c := range candidates {
		if stored[c] == minWeight {
			tier = append(tier, c)
		}
	}

	selected := tier[w.rnd.Intn(len(tier))]
	w.log.Debug().
		Str("selected", selected).
		Int64("min_weight", minWeight).
		Int("tier_size", len(tier)).
		Int("candidates", len(candidates)).
		Msg("partner selected")
	return selected, nil
}

// IncrementWeight atomically adds 1 to the identity's intro count.
func (w *WeightStore) IncrementWeight(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := w.store.Participants().IncrementWeight(ctx, w.partition, email); err != nil {
		return errors.Wrapf(err, "increment %s", email)
	}
	return nil
}

// SyncRoster replaces the stored roster with the given membership
// (lower-cased, deduplicated, order-preserving), upserts display names
// without touching weights, and removes participant records for identities
// no longer present. Returns the number of departed records removed.
func (w *WeightStore) SyncRoster(ctx context.Context, members []model.Member) (int, error) {
	seen := make(map[string]struct{}, len(members))
	emails := make([]string, 0, len(members))
	for _, m := range members {
		email := strings.ToLower(strings.TrimSpace(m.Email))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}

	if err := w.store.Rosters().Put(ctx, w.partition, emails); err != nil {
		return 0, errors.Wrap(err, "replace roster")
	}

	for _, m := range members {
		email := strings.ToLower(strings.TrimSpace(m.Email))
		if email == "" || m.DisplayName == "" {
			continue
		}
		if err := w.store.Participants().SetDisplayName(ctx, w.partition, email, m.DisplayName); err != nil {
			w.log.Warn().Err(err).Str("email", email).Msg("display name update failed")
		}
	}

	existing, err := w.store.Participants().List(ctx, w.partition)
	if err != nil {
		return 0, errors.Wrap(err, "scan participants")
	}

	removed := 0
	for _, rec := range existing {
		if _, present := seen[strings.ToLower(rec.Email)]; present {
			continue
		}
		if err := w.store.Participants().Delete(ctx, w.partition, rec.Email); err != nil {
			w.log.Warn().Err(err).Str("email", rec.Email).Msg("departed record delete failed")
			continue
		}
		w.log.Info().Str("email", rec.Email).Msg("removed departed participant")
		removed++
	}
	return removed, nil
}

// DisplayName returns the stored display name for the identity, falling back
// to the title-cased local part of the email when none is stored.
func (w *WeightStore) DisplayName(ctx context.Context, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	rec, err := w.store.Participants().Get(ctx, w.partition, email)
	if err == nil && rec.DisplayName != "" {
		return rec.DisplayName
	}
	return nameFromEmail(email)
}

func nameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	if len(parts) == 0 {
		return email
	}
	return strings.Join(parts, " ")
}
