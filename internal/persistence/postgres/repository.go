package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
)

const foreignKeyViolation = "23503"

const habitColumns = `id, name, description, color, frequency_days, reminder_time, created_at, user_id`

const completionColumns = `id, habit_id, day, completed, user_id`

var _ domain.HabitRepository = (*Repository)(nil)

// Repository provides Postgres-backed persistence for habits and completions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateHabit inserts a habit and returns it with its assigned id.
func (r *Repository) CreateHabit(ctx context.Context, input domain.HabitInput, createdAt time.Time) (domain.Habit, error) {
	h := input.NewHabit(0, createdAt.UTC())

	const stmt = `INSERT INTO habits (name, description, color, frequency_days, reminder_time, created_at, user_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING ` + habitColumns

	row := r.pool.QueryRow(ctx, stmt, h.Name, h.Description, h.Color, toInt32s(h.FrequencyDays), h.ReminderTime, h.CreatedAt, h.UserID)
	stored, err := scanHabit(row)
	if err != nil {
		return domain.Habit{}, err
	}
	return stored, nil
}

// GetHabit retrieves a habit by id.
func (r *Repository) GetHabit(ctx context.Context, id int64) (*domain.Habit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id=$1`, id)
	h, err := scanHabit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// ListHabits returns every habit ordered by id.
func (r *Repository) ListHabits(ctx context.Context) ([]domain.Habit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Habit, 0)
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateHabit locks the row, merges the patch and writes it back in one
// transaction.
func (r *Repository) UpdateHabit(ctx context.Context, id int64, patch domain.HabitPatch) (*domain.Habit, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanHabit(tx.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	h := current.Apply(patch)
	const stmt = `UPDATE habits SET name=$2, description=$3, color=$4, frequency_days=$5, reminder_time=$6, user_id=$7
        WHERE id=$1`
	if _, err := tx.Exec(ctx, stmt, h.ID, h.Name, h.Description, h.Color, toInt32s(h.FrequencyDays), h.ReminderTime, h.UserID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteHabit removes a habit; completions go with it through ON DELETE CASCADE.
func (r *Repository) DeleteHabit(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM habits WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListCompletions returns every completion ordered by id.
func (r *Repository) ListCompletions(ctx context.Context) ([]domain.HabitCompletion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+completionColumns+` FROM habit_completions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.HabitCompletion, 0)
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetCompletionByHabitAndDate returns the single record for the key, if any.
func (r *Repository) GetCompletionByHabitAndDate(ctx context.Context, habitID int64, day dateutil.Day) (*domain.HabitCompletion, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+completionColumns+` FROM habit_completions WHERE habit_id=$1 AND day=$2`, habitID, day.Time())
	c, err := scanCompletion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpsertCompletion relies on the (habit_id, day) unique constraint; xmax is
// zero only for freshly inserted rows.
func (r *Repository) UpsertCompletion(ctx context.Context, input domain.CompletionInput) (domain.HabitCompletion, bool, error) {
	const stmt = `INSERT INTO habit_completions (habit_id, day, completed, user_id)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (habit_id, day) DO UPDATE SET completed = EXCLUDED.completed
        RETURNING ` + completionColumns + `, (xmax = 0) AS inserted`

	var (
		c        domain.HabitCompletion
		day      time.Time
		inserted bool
	)
	err := r.pool.QueryRow(ctx, stmt, input.HabitID, input.Date.Time(), input.Completed, input.UserID).
		Scan(&c.ID, &c.HabitID, &day, &c.Completed, &c.UserID, &inserted)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.HabitCompletion{}, false, domain.ErrHabitNotFound
		}
		return domain.HabitCompletion{}, false, err
	}
	c.Date = dateutil.FromTime(day, time.UTC)
	return c, inserted, nil
}

// Reset truncates both tables and restarts the id sequences.
func (r *Repository) Reset(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `TRUNCATE habit_completions, habits RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

func scanHabit(row pgx.Row) (domain.Habit, error) {
	var (
		h    domain.Habit
		days []int32
	)
	if err := row.Scan(&h.ID, &h.Name, &h.Description, &h.Color, &days, &h.ReminderTime, &h.CreatedAt, &h.UserID); err != nil {
		return domain.Habit{}, err
	}
	h.FrequencyDays = make([]int, len(days))
	for i, d := range days {
		h.FrequencyDays[i] = int(d)
	}
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

func scanCompletion(row pgx.Row) (domain.HabitCompletion, error) {
	var (
		c   domain.HabitCompletion
		day time.Time
	)
	if err := row.Scan(&c.ID, &c.HabitID, &day, &c.Completed, &c.UserID); err != nil {
		return domain.HabitCompletion{}, err
	}
	c.Date = dateutil.FromTime(day, time.UTC)
	return c, nil
}

func toInt32s(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}
