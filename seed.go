package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/matching/memstore"
	"github.com/Benwil1/latest-copy-sub000/profiles"
)

type seedOptions struct {
	Count       int
	Seed        int64
	LikeRate    float64 // proportion of one-sided likes
	MutualRate  float64 // proportion of pairs that like each other
	UnmatchRate float64 // proportion of mutual pairs unmatched afterwards
	Tokens      int     // print tokens for the first N users
	DryRun      bool
}

type seedReport struct {
	Users     int `json:"users"`
	Actions   int `json:"actions"`
	Mutual    int `json:"mutual"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
}

type profileWriter interface {
	Put(ctx context.Context, p matching.Profile) error
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var so seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate profiles and actions with deterministic test data",
		Long: `Create random roommate profiles and record likes and dislikes between them
through the matching engine. The first two users always match each other.
Re-running with the same seed skips actions that already exist.

With --dry-run nothing is written; an in-memory ledger is used instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := so.validate(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if so.DryRun {
				src := profiles.NewMemory()
				return runSeed(ctx, so, memstore.New(), src, src, []byte(opts.cfg.Auth.JWTSecret), cmd.OutOrStdout())
			}

			store, err := openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			src := profiles.NewSQLSource(store.DB(), store.Driver())
			return runSeed(ctx, so, store, src, src, []byte(opts.cfg.Auth.JWTSecret), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&so.Count, "count", 300, "Number of users to create")
	cmd.Flags().Int64Var(&so.Seed, "seed", 42, "RNG seed (deterministic)")
	cmd.Flags().Float64Var(&so.LikeRate, "like-rate", 0.40, "Proportion of one-sided likes (0..1)")
	cmd.Flags().Float64Var(&so.MutualRate, "mutual-rate", 0.30, "Proportion of mutual likes (0..1)")
	cmd.Flags().Float64Var(&so.UnmatchRate, "unmatch-rate", 0.05, "Proportion of mutual pairs unmatched (0..1)")
	cmd.Flags().IntVar(&so.Tokens, "tokens", 2, "Print API tokens for the first N users")
	cmd.Flags().BoolVar(&so.DryRun, "dry-run", false, "Use an in-memory ledger and write nothing")
	return cmd
}

func (o seedOptions) validate() error {
	if o.Count < 2 {
		return errors.New("--count must be at least 2")
	}
	for _, r := range []float64{o.LikeRate, o.MutualRate, o.UnmatchRate} {
		if r < 0 || r > 1 {
			return errors.New("rate flags must be in range 0..1")
		}
	}
	if o.LikeRate+o.MutualRate > 1 {
		return errors.New("--like-rate plus --mutual-rate must not exceed 1")
	}
	return nil
}

func runSeed(ctx context.Context, o seedOptions, store matching.Store, writer profileWriter, src matching.ProfileSource, secret []byte, out io.Writer) error {
	r := rand.New(rand.NewSource(o.Seed))
	log := logging.Ctx(ctx)

	users := make([]string, o.Count)
	for i := range users {
		users[i] = fmt.Sprintf("user-%04d", i+1)
	}
	for i, id := range users {
		p := randomProfile(r, id)
		if i < len(staticProfiles) {
			p = staticProfiles[i]
			p.ID = id
		}
		if err := writer.Put(ctx, p); err != nil {
			return fmt.Errorf("insert profile %s: %w", id, err)
		}
	}
	log.Info().Int("count", len(users)).Msg("Inserted profiles")

	engine := matching.New(store, src, nil, matching.Options{})
	rep := seedReport{Users: len(users)}

	record := func(actor, target string, kind matching.ActionKind) (bool, error) {
		res, err := engine.RecordAction(ctx, actor, target, kind)
		var dup *matching.DuplicateActionError
		if errors.As(err, &dup) {
			rep.Skipped++
			return false, nil
		}
		if err != nil {
			return false, err
		}
		rep.Actions++
		if res.IsMutual {
			rep.Mutual++
		}
		return res.IsMutual, nil
	}

	// The first two users always match.
	if _, err := record(users[0], users[1], matching.Like); err != nil {
		return err
	}
	if _, err := record(users[1], users[0], matching.Like); err != nil {
		return err
	}

	rest := users[2:]
	if len(rest) >= 2 {
		seen := make(map[matching.Pair]struct{}, len(rest)*2)
		maxPairs := len(rest) * (len(rest) - 1) / 2
		targetPairs := min(len(rest)*2, maxPairs)

		for len(seen) < targetPairs {
			u, v := rest[r.Intn(len(rest))], rest[r.Intn(len(rest))]
			if u == v {
				continue
			}
			pair := matching.NewPair(u, v)
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}

			// Draw both rolls every time so re-runs visit the same pairs.
			p, unmatch := r.Float64(), r.Float64() < o.UnmatchRate
			switch {
			case p < o.MutualRate:
				if _, err := record(u, v, matching.Like); err != nil {
					return err
				}
				mutual, err := record(v, u, matching.Like)
				if err != nil {
					return err
				}
				if mutual && unmatch {
					if err := engine.Unmatch(ctx, u, v); err != nil {
						return err
					}
					rep.Unmatched++
				}
			case p < o.MutualRate+o.LikeRate:
				if _, err := record(u, v, matching.Like); err != nil {
					return err
				}
			default:
				if _, err := record(u, v, matching.Dislike); err != nil {
					return err
				}
			}
		}
	}
	log.Info().
		Int("actions", rep.Actions).
		Int("mutual", rep.Mutual).
		Int("unmatched", rep.Unmatched).
		Int("skipped", rep.Skipped).
		Msg("Seed complete")

	if err := printJSON(out, rep); err != nil {
		return err
	}
	for _, id := range users[:min(o.Tokens, len(users))] {
		tok, err := signToken(secret, id, 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", id, tok)
	}
	return nil
}

// Fixed profiles for the first two (test) users.
var staticProfiles = []matching.Profile{
	{
		Location:  "Helsinki",
		Budget:    900,
		Age:       27,
		Lifestyle: map[string]string{"smoking": "no", "pets": "yes", "cleanliness": "tidy", "noise": "quiet", "guests": "sometimes"},
		Interests: []string{"woodworking", "pottery", "indie games", "sushi"},
	},
	{
		Location:  "Helsinki",
		Budget:    1000,
		Age:       29,
		Lifestyle: map[string]string{"smoking": "no", "pets": "yes", "cleanliness": "tidy", "noise": "moderate"},
		Interests: []string{"calligraphy", "retro computing", "indie games", "jazz"},
	},
}

var seedCities = []string{"Helsinki", "Espoo", "Tampere", "Turku", "Oulu", "Helsinki Kallio", "Vantaa"}

var (
	seedLifestyle = map[string][]string{
		"smoking":     {"no", "outside", "yes"},
		"pets":        {"no", "yes", "cats only"},
		"cleanliness": {"tidy", "average", "relaxed"},
		"noise":       {"quiet", "moderate", "lively"},
		"guests":      {"rarely", "sometimes", "often"},
	}
	seedInterests = []string{
		"hiking", "cooking", "board games", "yoga", "jazz", "techno", "reading",
		"climbing", "photography", "gardening", "cycling", "film", "running", "knitting",
	}
)

func randomProfile(r *rand.Rand, id string) matching.Profile {
	p := matching.Profile{ID: id}
	if r.Float64() < 0.9 {
		p.Location = seedCities[r.Intn(len(seedCities))]
	}
	if r.Float64() < 0.85 {
		p.Budget = 500 + 50*r.Intn(41)
	}
	if r.Float64() < 0.9 {
		p.Age = 18 + r.Intn(28)
	}
	p.Lifestyle = make(map[string]string)
	for _, key := range matching.LifestyleKeys {
		if r.Float64() < 0.8 {
			opts := seedLifestyle[key]
			p.Lifestyle[key] = opts[r.Intn(len(opts))]
		}
	}
	for _, i := range r.Perm(len(seedInterests))[:r.Intn(6)] {
		p.Interests = append(p.Interests, seedInterests[i])
	}
	return p
}
