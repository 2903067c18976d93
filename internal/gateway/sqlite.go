package gateway

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tripwire24/tw-experiment-engine/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is the row-store gateway backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the backend database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*SQLite, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "growthops.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	g := &SQLite{db: db}
	if err := g.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return g, nil
}

// Close closes the underlying database connection.
func (g *SQLite) Close() error {
	return g.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (g *SQLite) migrate() error {
	if _, err := g.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := g.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := g.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (g *SQLite) AppliedMigrations() ([]int, error) {
	rows, err := g.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Experiments ---

// FetchExperiments returns all experiment rows ordered by creation time
// descending, each with the owner's display name joined from profiles and
// its comments nested (commenter names joined, ascending by timestamp).
func (g *SQLite) FetchExperiments(ctx context.Context) ([]model.Experiment, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT e.id, e.board_id, e.title, e.description, e.status,
		       e.ice_impact, e.ice_confidence, e.ice_ease, e.market, e.type,
		       e.tags, e.created_at, e.archived, e.locked, e.result,
		       COALESCE(p.full_name, '')
		FROM experiments e
		LEFT JOIN profiles p ON p.id = e.owner_id
		ORDER BY e.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying experiments: %w", err)
	}
	defer rows.Close()

	var experiments []model.Experiment
	index := make(map[string]int)
	for rows.Next() {
		var e model.Experiment
		var tags, createdAt, result, ownerName string
		var archived, locked int
		if err := rows.Scan(&e.ID, &e.BoardID, &e.Title, &e.Description, &e.Status,
			&e.ICEImpact, &e.ICEConfidence, &e.ICEEase, &e.Market, &e.Type,
			&tags, &createdAt, &archived, &locked, &result, &ownerName); err != nil {
			return nil, fmt.Errorf("scanning experiment row: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for experiment %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("parsing tags for experiment %s: %w", e.ID, err)
		}
		e.Archived = archived != 0
		e.Locked = locked != 0
		e.Result = model.Result(result)
		e.Owner = ownerName
		if e.Owner == "" {
			e.Owner = "Unknown"
		}
		e.Comments = []model.Comment{}
		index[e.ID] = len(experiments)
		experiments = append(experiments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := g.attachComments(ctx, experiments, index); err != nil {
		return nil, err
	}
	return experiments, nil
}

// attachComments loads every comment with its author's display name and
// appends it to the owning experiment. Comments arrive ordered ascending by
// timestamp, so the per-experiment sequences stay sorted.
func (g *SQLite) attachComments(ctx context.Context, experiments []model.Experiment, index map[string]int) error {
	rows, err := g.db.QueryContext(ctx, `
		SELECT c.id, c.experiment_id, c.user_id, c.text, c.created_at,
		       c.has_attachment, COALESCE(p.full_name, '')
		FROM comments c
		LEFT JOIN profiles p ON p.id = c.user_id
		ORDER BY c.created_at ASC`)
	if err != nil {
		return fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Comment
		var experimentID, createdAt, userName string
		var hasAttachment int
		if err := rows.Scan(&c.ID, &experimentID, &c.UserID, &c.Text, &createdAt, &hasAttachment, &userName); err != nil {
			return fmt.Errorf("scanning comment row: %w", err)
		}
		if c.Timestamp, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return fmt.Errorf("parsing created_at for comment %s: %w", c.ID, err)
		}
		c.HasAttachment = hasAttachment != 0
		c.UserName = userName
		if c.UserName == "" {
			c.UserName = "Teammate"
		}
		if i, ok := index[experimentID]; ok {
			experiments[i].Comments = append(experiments[i].Comments, c)
		}
	}
	return rows.Err()
}

// experimentColumns whitelists the columns a partial update may touch.
var experimentColumns = map[string]bool{
	"board_id": true, "title": true, "description": true, "status": true,
	"ice_impact": true, "ice_confidence": true, "ice_ease": true,
	"market": true, "type": true, "tags": true,
	"archived": true, "locked": true, "result": true,
}

// UpdateExperimentFields applies a partial column update to one experiment
// row. Unknown columns are rejected up front so a typo can't silently drop a
// field.
func (g *SQLite) UpdateExperimentFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !experimentColumns[col] {
			return fmt.Errorf("unknown experiment column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		v, err := bindValue(fields[col])
		if err != nil {
			return fmt.Errorf("encoding column %q: %w", col, err)
		}
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	args = append(args, id)

	res, err := g.db.ExecContext(ctx, "UPDATE experiments SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// bindValue converts Go-side values into their column representations:
// bools to 0/1, string slices to JSON text, times to RFC3339.
func bindValue(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case []string:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339), nil
	case model.Status:
		return string(val), nil
	case model.Result:
		return string(val), nil
	default:
		return v, nil
	}
}

// InsertExperiment creates a new experiment row with a server-assigned
// identifier and timestamp and returns the assigned id. The caller refetches
// afterward rather than patching its optimistic copy.
func (g *SQLite) InsertExperiment(ctx context.Context, payload ExperimentInsert, ownerID string) (string, error) {
	id := uuid.NewString()
	tags, err := json.Marshal(payload.Tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	status := payload.Status
	if status == "" {
		status = string(model.StatusIdea)
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO experiments (id, board_id, title, description, status,
			ice_impact, ice_confidence, ice_ease, market, type, tags,
			created_at, archived, locked, result, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '', ?)`,
		id, payload.BoardID, payload.Title, payload.Description, status,
		payload.ICEImpact, payload.ICEConfidence, payload.ICEEase,
		payload.Market, payload.Type, string(tags),
		time.Now().UTC().Format(time.RFC3339), ownerID,
	)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// DeleteExperiment removes an experiment row; its comments cascade.
func (g *SQLite) DeleteExperiment(ctx context.Context, id string) error {
	res, err := g.db.ExecContext(ctx, "DELETE FROM experiments WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertComment appends a comment row to an experiment.
func (g *SQLite) InsertComment(ctx context.Context, experimentID, authorID, text string) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO comments (id, experiment_id, user_id, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), experimentID, authorID, text,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

// --- Boards ---

// FetchBoards returns the board rows ordered by creation time ascending.
func (g *SQLite) FetchBoards(ctx context.Context) ([]model.Board, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM boards ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	defer rows.Close()

	var boards []model.Board
	for rows.Next() {
		var b model.Board
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning board row: %w", err)
		}
		if b.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for board %s: %w", b.ID, err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// --- Profiles ---

// GetProfile returns the profile row for an identity, or ErrNotFound when no
// row exists yet (a new user before their first profile save).
func (g *SQLite) GetProfile(ctx context.Context, id string) (model.UserProfile, error) {
	var p model.UserProfile
	err := g.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, avatar_url, bio, linkedin_url, contact_email
		FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.Bio, &p.LinkedInURL, &p.ContactEmail)
	if err == sql.ErrNoRows {
		return model.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, classify(err)
	}
	return p, nil
}

// UpsertProfile inserts or updates a profile row. A missing profiles table
// surfaces as ErrSchemaMissing so the caller can show remediation text.
func (g *SQLite) UpsertProfile(ctx context.Context, p ProfileUpsert) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, avatar_url, bio, linkedin_url, contact_email, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			bio = excluded.bio,
			linkedin_url = excluded.linkedin_url,
			contact_email = excluded.contact_email,
			updated_at = excluded.updated_at`,
		p.ID, p.FullName, p.AvatarURL, p.Bio, p.LinkedInURL, p.ContactEmail,
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

// --- Accounts ---

// CreateAccount registers a new identity with a password hash. The email
// must not already be registered.
func (g *SQLite) CreateAccount(ctx context.Context, id, email, passwordHash string) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, password_hash, updated_at)
		VALUES (?, ?, ?, ?)`,
		id, email, passwordHash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("email %s already registered", email)
		}
		return classify(err)
	}
	return nil
}

// AccountByEmail returns the identity id and password hash for an email.
func (g *SQLite) AccountByEmail(ctx context.Context, email string) (id, passwordHash string, err error) {
	err = g.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM profiles WHERE email = ?", email,
	).Scan(&id, &passwordHash)
	if err == sql.ErrNoRows {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", classify(err)
	}
	return id, passwordHash, nil
}

// classify wraps "no such table" failures with ErrSchemaMissing, leaving
// everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	}
	return err
}
