package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure SQLiteStore implements model.VacancyStore.
var _ model.VacancyStore = (*SQLiteStore)(nil)

// SQLiteStore persists vacancies and their classification in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the vacancies table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS vacancies (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		employer         TEXT NOT NULL DEFAULT '',
		location         TEXT NOT NULL DEFAULT '',
		url              TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		posted_at        DATETIME NOT NULL,
		status           TEXT NOT NULL,
		created_at       DATETIME NOT NULL,
		transitioned_at  DATETIME NOT NULL,
		delivered_at     DATETIME,
		cls_accepted     INTEGER,
		cls_score        REAL,
		cls_reason       TEXT,
		cls_tags         TEXT,
		enrich_state     TEXT,
		enrich_attempts  INTEGER,
		enrich_last_try  DATETIME,
		letter           TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_vacancies_status ON vacancies(status)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vacancies table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const vacancyColumns = `id, title, employer, location, url, description, posted_at, status,
	created_at, transitioned_at, delivered_at,
	cls_accepted, cls_score, cls_reason, cls_tags,
	enrich_state, enrich_attempts, enrich_last_try, letter`

// Load returns the vacancy with the given ID, or model.ErrNotFound.
func (s *SQLiteStore) Load(id string) (*model.Vacancy, error) {
	row := s.db.QueryRow("SELECT "+vacancyColumns+" FROM vacancies WHERE id = ?", id)
	v, err := scanVacancy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading vacancy %s: %w", id, err)
	}
	return v, nil
}

// Save upserts the vacancy, including its classification if present.
func (s *SQLiteStore) Save(v *model.Vacancy) error {
	var (
		clsAccepted sql.NullBool
		clsScore    sql.NullFloat64
		clsReason   sql.NullString
		clsTags     sql.NullString
		enrichState sql.NullString
		enrichTries sql.NullInt64
		enrichLast  sql.NullTime
		letter      sql.NullString
	)
	if c := v.Classification; c != nil {
		clsAccepted = sql.NullBool{Bool: c.Accepted, Valid: true}
		clsScore = sql.NullFloat64{Float64: c.Score, Valid: true}
		clsReason = sql.NullString{String: c.Reason, Valid: true}
		tags, err := json.Marshal(c.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags for %s: %w", v.ID, err)
		}
		clsTags = sql.NullString{String: string(tags), Valid: true}
		enrichState = sql.NullString{String: string(c.Enrichment), Valid: true}
		enrichTries = sql.NullInt64{Int64: int64(c.Attempts), Valid: true}
		if c.LastTried != nil {
			enrichLast = sql.NullTime{Time: *c.LastTried, Valid: true}
		}
		letter = sql.NullString{String: c.Letter, Valid: true}
	}

	var deliveredAt sql.NullTime
	if v.DeliveredAt != nil {
		deliveredAt = sql.NullTime{Time: *v.DeliveredAt, Valid: true}
	}

	_, err := s.db.Exec(`INSERT INTO vacancies (`+vacancyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			employer = excluded.employer,
			location = excluded.location,
			url = excluded.url,
			description = excluded.description,
			posted_at = excluded.posted_at,
			status = excluded.status,
			transitioned_at = excluded.transitioned_at,
			delivered_at = excluded.delivered_at,
			cls_accepted = excluded.cls_accepted,
			cls_score = excluded.cls_score,
			cls_reason = excluded.cls_reason,
			cls_tags = excluded.cls_tags,
			enrich_state = excluded.enrich_state,
			enrich_attempts = excluded.enrich_attempts,
			enrich_last_try = excluded.enrich_last_try,
			letter = excluded.letter`,
		v.ID, v.Title, v.Employer, v.Location, v.URL, v.Description, v.PostedAt, string(v.Status),
		v.CreatedAt, v.TransitionedAt, deliveredAt,
		clsAccepted, clsScore, clsReason, clsTags,
		enrichState, enrichTries, enrichLast, letter,
	)
	if err != nil {
		return fmt.Errorf("saving vacancy %s: %w", v.ID, err)
	}
	return nil
}

// Delete removes the vacancy record entirely. Used only for vacancies that
// violate the content exclusion policy.
func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM vacancies WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting vacancy %s: %w", id, err)
	}
	return nil
}

// FindByStatus returns all vacancies with the given status, oldest posting first.
func (s *SQLiteStore) FindByStatus(status model.Status) ([]*model.Vacancy, error) {
	return s.query("SELECT "+vacancyColumns+" FROM vacancies WHERE status = ? ORDER BY posted_at", string(status))
}

// FindSkippedSince returns skipped vacancies whose last transition is at or
// after cutoff — the recovery-eligible set.
func (s *SQLiteStore) FindSkippedSince(cutoff time.Time) ([]*model.Vacancy, error) {
	return s.query(
		"SELECT "+vacancyColumns+" FROM vacancies WHERE status = ? AND transitioned_at >= ? ORDER BY posted_at",
		string(model.StatusSkipped), cutoff,
	)
}

// FindNonTerminal returns every vacancy that can still make progress.
func (s *SQLiteStore) FindNonTerminal() ([]*model.Vacancy, error) {
	return s.query(
		"SELECT "+vacancyColumns+" FROM vacancies WHERE status NOT IN (?, ?, ?, ?) ORDER BY posted_at",
		string(model.StatusInArchive), string(model.StatusRejected),
		string(model.StatusUserAccepted), string(model.StatusUserRejected),
	)
}

func (s *SQLiteStore) query(q string, args ...any) ([]*model.Vacancy, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vacancies: %w", err)
	}
	defer rows.Close()

	var out []*model.Vacancy
	for rows.Next() {
		v, err := scanVacancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vacancy: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vacancies: %w", err)
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVacancy(row scanner) (*model.Vacancy, error) {
	var (
		v           model.Vacancy
		status      string
		deliveredAt sql.NullTime
		clsAccepted sql.NullBool
		clsScore    sql.NullFloat64
		clsReason   sql.NullString
		clsTags     sql.NullString
		enrichState sql.NullString
		enrichTries sql.NullInt64
		enrichLast  sql.NullTime
		letter      sql.NullString
	)

	err := row.Scan(
		&v.ID, &v.Title, &v.Employer, &v.Location, &v.URL, &v.Description, &v.PostedAt, &status,
		&v.CreatedAt, &v.TransitionedAt, &deliveredAt,
		&clsAccepted, &clsScore, &clsReason, &clsTags,
		&enrichState, &enrichTries, &enrichLast, &letter,
	)
	if err != nil {
		return nil, err
	}

	v.Status = model.Status(status)
	if deliveredAt.Valid {
		v.DeliveredAt = &deliveredAt.Time
	}

	if clsAccepted.Valid {
		c := &model.Classification{
			Accepted:   clsAccepted.Bool,
			Score:      clsScore.Float64,
			Reason:     clsReason.String,
			Enrichment: model.EnrichmentState(enrichState.String),
			Attempts:   int(enrichTries.Int64),
			Letter:     letter.String,
		}
		if clsTags.Valid && clsTags.String != "" {
			if err := json.Unmarshal([]byte(clsTags.String), &c.Tags); err != nil {
				return nil, fmt.Errorf("unmarshaling tags: %w", err)
			}
		}
		if enrichLast.Valid {
			c.LastTried = &enrichLast.Time
		}
		v.Classification = c
	}

	return &v, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
