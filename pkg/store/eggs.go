package store

import (
	"context"
	"encoding/json"
	"fmt"

	"server-splitter/pkg/model"
)

func (q *queries) InsertNest(ctx context.Context, n *model.Nest) error {
	res, err := q.db.ExecContext(ctx, "INSERT INTO nests (name) VALUES (?)", n.Name)
	if err != nil {
		return fmt.Errorf("insert nest %s: %w", n.Name, err)
	}
	n.ID, err = res.LastInsertId()
	return err
}

func (q *queries) GetNest(ctx context.Context, id int64) (*model.Nest, error) {
	var n model.Nest
	if err := q.db.QueryRowContext(ctx, "SELECT id, name FROM nests WHERE id = ?", id).Scan(&n.ID, &n.Name); err != nil {
		return nil, notFound(err, "nest", id)
	}
	return &n, nil
}

const eggColumns = "id, uuid, nest_id, name, startup, images"

func scanEgg(row rowScanner) (*model.Egg, error) {
	var (
		e      model.Egg
		images string
	)
	if err := row.Scan(&e.ID, &e.UUID, &e.NestID, &e.Name, &e.Startup, &images); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &e.Images); err != nil {
		return nil, fmt.Errorf("decode images of egg %d: %w", e.ID, err)
	}
	return &e, nil
}

func (q *queries) InsertEgg(ctx context.Context, e *model.Egg) error {
	images, err := json.Marshal(e.Images)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO eggs (uuid, nest_id, name, startup, images) VALUES (?, ?, ?, ?, ?)",
		e.UUID, e.NestID, e.Name, e.Startup, string(images))
	if err != nil {
		return fmt.Errorf("insert egg %s: %w", e.Name, err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (q *queries) GetEgg(ctx context.Context, id int64) (*model.Egg, error) {
	e, err := scanEgg(q.db.QueryRowContext(ctx, "SELECT "+eggColumns+" FROM eggs WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "egg", id)
	}
	return e, nil
}

func (q *queries) GetEggByUUID(ctx context.Context, uuid string) (*model.Egg, error) {
	e, err := scanEgg(q.db.QueryRowContext(ctx, "SELECT "+eggColumns+" FROM eggs WHERE uuid = ?", uuid))
	if err != nil {
		return nil, notFound(err, "egg", uuid)
	}
	return e, nil
}

// EggsByIDs returns the eggs among ids that exist, ordered by id.
func (q *queries) EggsByIDs(ctx context.Context, ids []int64) ([]*model.Egg, error) {
	var out []*model.Egg
	for _, id := range ids {
		e, err := q.GetEgg(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	sortByID(out, func(e *model.Egg) int64 { return e.ID })
	return out, nil
}

func (q *queries) InsertEggVariable(ctx context.Context, v *model.EggVariable) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO egg_variables (egg_id, env_variable, default_value) VALUES (?, ?, ?)",
		v.EggID, v.EnvVariable, v.DefaultValue)
	if err != nil {
		return fmt.Errorf("insert variable %s of egg %d: %w", v.EnvVariable, v.EggID, err)
	}
	return nil
}

func (q *queries) EggVariables(ctx context.Context, eggID int64) ([]*model.EggVariable, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT egg_id, env_variable, default_value FROM egg_variables WHERE egg_id = ? ORDER BY id", eggID)
	if err != nil {
		return nil, fmt.Errorf("list variables of egg %d: %w", eggID, err)
	}
	defer rows.Close()

	var out []*model.EggVariable
	for rows.Next() {
		var v model.EggVariable
		if err := rows.Scan(&v.EggID, &v.EnvVariable, &v.DefaultValue); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func scanEggRule(row rowScanner) (*model.EggRule, error) {
	var (
		r             model.EggRule
		eggs, allowed string
	)
	if err := row.Scan(&r.ID, &eggs, &allowed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(eggs), &r.Eggs); err != nil {
		return nil, fmt.Errorf("decode egg rule %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(allowed), &r.AllowedEggs); err != nil {
		return nil, fmt.Errorf("decode egg rule %d: %w", r.ID, err)
	}
	return &r, nil
}

func (q *queries) ListEggRules(ctx context.Context) ([]*model.EggRule, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, eggs, allowed_eggs FROM egg_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list egg rules: %w", err)
	}
	defer rows.Close()

	var out []*model.EggRule
	for rows.Next() {
		r, err := scanEggRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) GetEggRule(ctx context.Context, id int64) (*model.EggRule, error) {
	r, err := scanEggRule(q.db.QueryRowContext(ctx, "SELECT id, eggs, allowed_eggs FROM egg_rules WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "egg rule", id)
	}
	return r, nil
}

// EggRuleFor returns the first rule whose source eggs contain eggID.
func (q *queries) EggRuleFor(ctx context.Context, eggID int64) (*model.EggRule, error) {
	rules, err := q.ListEggRules(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		if r.Matches(eggID) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("egg rule for egg %d: %w", eggID, ErrNotFound)
}

func (q *queries) InsertEggRule(ctx context.Context, r *model.EggRule) error {
	eggs, allowed, err := encodeRule(r)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, "INSERT INTO egg_rules (eggs, allowed_eggs) VALUES (?, ?)", eggs, allowed)
	if err != nil {
		return fmt.Errorf("insert egg rule: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (q *queries) UpdateEggRule(ctx context.Context, r *model.EggRule) error {
	eggs, allowed, err := encodeRule(r)
	if err != nil {
		return err
	}
	return q.execOne(ctx, "UPDATE egg_rules SET eggs = ?, allowed_eggs = ? WHERE id = ?", "egg rule", r.ID, eggs, allowed, r.ID)
}

func (q *queries) DeleteEggRule(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM egg_rules WHERE id = ?", "egg rule", id, id)
}

func encodeRule(r *model.EggRule) (string, string, error) {
	eggs, err := json.Marshal(nonNil(r.Eggs))
	if err != nil {
		return "", "", err
	}
	allowed, err := json.Marshal(nonNil(r.AllowedEggs))
	if err != nil {
		return "", "", err
	}
	return string(eggs), string(allowed), nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
