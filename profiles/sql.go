package profiles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/sqlstore"
)

// SQLSource reads the profiles table created by the sqlstore migrations.
type SQLSource struct {
	db     *sql.DB
	driver string
}

func NewSQLSource(db *sql.DB, driver string) *SQLSource {
	return &SQLSource{db: db, driver: driver}
}

func (s *SQLSource) GetProfile(ctx context.Context, id string) (matching.Profile, error) {
	ps, err := s.GetProfiles(ctx, []string{id})
	if err != nil {
		return matching.Profile{}, err
	}
	p, ok := ps[id]
	if !ok {
		return matching.Profile{}, matching.ErrProfileNotFound
	}
	return p, nil
}

// GetProfiles loads all ids in one query.
func (s *SQLSource) GetProfiles(ctx context.Context, ids []string) (map[string]matching.Profile, error) {
	ids = dedupe(ids)
	out := make(map[string]matching.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := sqlstore.Rebind(s.driver, fmt.Sprintf(`
		SELECT user_id, location, budget, age, lifestyle, interests
		FROM profiles
		WHERE user_id IN (%s)`, strings.Join(placeholders, ", ")))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("get profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                    matching.Profile
			lifestyle, interests []byte
		)
		if err := rows.Scan(&p.ID, &p.Location, &p.Budget, &p.Age, &lifestyle, &interests); err != nil {
			return nil, storageErr("get profiles: scan", err)
		}
		if len(lifestyle) > 0 {
			if err := json.Unmarshal(lifestyle, &p.Lifestyle); err != nil {
				return nil, fmt.Errorf("get profiles: decode lifestyle for %s: %w", p.ID, err)
			}
		}
		if len(interests) > 0 {
			if err := json.Unmarshal(interests, &p.Interests); err != nil {
				return nil, fmt.Errorf("get profiles: decode interests for %s: %w", p.ID, err)
			}
		}
		out[p.ID] = normalize(p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get profiles: rows", err)
	}
	return out, nil
}

// Put upserts p. The engine never writes profiles; the seed command does.
func (s *SQLSource) Put(ctx context.Context, p matching.Profile) error {
	p = normalize(p)
	lifestyle := p.Lifestyle
	if lifestyle == nil {
		lifestyle = map[string]string{}
	}
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	ls, err := json.Marshal(lifestyle)
	if err != nil {
		return fmt.Errorf("put profile: encode lifestyle: %w", err)
	}
	in, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("put profile: encode interests: %w", err)
	}

	_, err = s.db.ExecContext(ctx, sqlstore.Rebind(s.driver, `
		INSERT INTO profiles (user_id, location, budget, age, lifestyle, interests)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			location = excluded.location,
			budget = excluded.budget,
			age = excluded.age,
			lifestyle = excluded.lifestyle,
			interests = excluded.interests`),
		p.ID, p.Location, p.Budget, p.Age, string(ls), string(in))
	if err != nil {
		return storageErr("put profile", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	if sqlstore.IsTransient(err) {
		return &matching.StorageUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
