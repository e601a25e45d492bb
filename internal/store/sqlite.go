package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/ideation-study/internal/domain"
	"github.com/ashureev/ideation-study/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes assignment and turn writes to prevent SQLITE_BUSY
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers; every transaction starts with BEGIN IMMEDIATE
	// so the read-then-write sequences take the write lock up front.
	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS participants (
		participant_id TEXT PRIMARY KEY,
		consent_time   TEXT,
		created_at     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS baseline (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		participant_id TEXT NOT NULL UNIQUE,
		grade_major    TEXT NOT NULL,
		culture_course TEXT,
		chatbot_exp    TEXT,
		stress_1w      TEXT,
		created_at     TEXT NOT NULL,
		FOREIGN KEY(participant_id) REFERENCES participants(participant_id)
	);

	CREATE TABLE IF NOT EXISTS material_choice (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		participant_id   TEXT NOT NULL UNIQUE,
		chosen_direction TEXT NOT NULL,
		chosen_label     TEXT,
		page_time        TEXT,
		choice_time      TEXT NOT NULL,
		rt_ms            INTEGER,
		user_agent       TEXT,
		FOREIGN KEY(participant_id) REFERENCES participants(participant_id)
	);
	CREATE INDEX IF NOT EXISTS idx_material_choice_direction ON material_choice(chosen_direction);

	CREATE TABLE IF NOT EXISTS condition_assign (
		participant_id     TEXT PRIMARY KEY,
		condition_planning TEXT NOT NULL CHECK(condition_planning IN ('pre','none')),
		condition_feedback TEXT NOT NULL CHECK(condition_feedback IN ('focused','generic')),
		assigned_at        TEXT NOT NULL,
		FOREIGN KEY(participant_id) REFERENCES participants(participant_id)
	);
	CREATE INDEX IF NOT EXISTS idx_condition_assign_cell ON condition_assign(condition_planning, condition_feedback);

	CREATE TABLE IF NOT EXISTS planning_input (
		participant_id        TEXT PRIMARY KEY,
		plan_goal             TEXT NOT NULL,
		plan_audience_context TEXT NOT NULL,
		plan_elements         TEXT NOT NULL,
		plan_output           TEXT NOT NULL,
		created_at            TEXT NOT NULL,
		FOREIGN KEY(participant_id) REFERENCES participants(participant_id)
	);

	CREATE TABLE IF NOT EXISTS chat_log (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		participant_id TEXT NOT NULL,
		turn_id        INTEGER NOT NULL CHECK(turn_id >= 1),
		role           TEXT NOT NULL CHECK(role IN ('user','assistant')),
		text           TEXT NOT NULL,
		ts             TEXT NOT NULL,
		FOREIGN KEY(participant_id) REFERENCES participants(participant_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_pid_turn_role ON chat_log(participant_id, turn_id, role);
	CREATE INDEX IF NOT EXISTS idx_chat_pid_role ON chat_log(participant_id, role);
	`
	query += surveyTableSQL(domain.Stage1) + surveyTableSQL(domain.Stage2)

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func surveyTableSQL(stage domain.Stage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nCREATE TABLE IF NOT EXISTS survey_%s (\n\tparticipant_id TEXT PRIMARY KEY,\n", stage)
	for _, item := range stage.Items() {
		fmt.Fprintf(&b, "\t%s INTEGER,\n", item.Column)
	}
	b.WriteString("\tcreated_at TEXT NOT NULL,\n")
	b.WriteString("\tFOREIGN KEY(participant_id) REFERENCES participants(participant_id)\n);\n")
	return b.String()
}

// wrapErr classifies driver errors: contention becomes domain.ErrConcurrencyConflict,
// everything else a domain.StorageError.
func wrapErr(op string, err error) error {
	if shared.IsSQLiteConflictError(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrencyConflict, err)
	}
	return &domain.StorageError{Op: op, Err: err}
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func ensureParticipant(ctx context.Context, q dbtx, participantID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO participants (participant_id, created_at)
		VALUES (?, ?)`, participantID, domain.FormatTimestamp(now))
	return err
}

// GetParticipant retrieves a participant by id.
func (s *SQLiteStore) GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT participant_id, consent_time, created_at
		FROM participants WHERE participant_id = ?`, participantID)

	var p domain.Participant
	var consent sql.NullString
	var createdAt string
	err := row.Scan(&p.ParticipantID, &consent, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("scan participant row", err)
	}

	p.CreatedAt = parseStored(createdAt, "participants.created_at")
	if consent.Valid {
		ts := parseStored(consent.String, "participants.consent_time")
		p.ConsentTime = &ts
	}
	return &p, nil
}

// RecordConsent creates the participant with a consent time.
func (s *SQLiteStore) RecordConsent(ctx context.Context, participantID string, at time.Time) error {
	ts := domain.FormatTimestamp(at)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (participant_id, consent_time, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			consent_time = COALESCE(participants.consent_time, excluded.consent_time)`,
		participantID, ts, ts)
	if err != nil {
		return wrapErr("record consent", err)
	}
	return nil
}

// EnsureParticipant creates the participant if it does not exist.
func (s *SQLiteStore) EnsureParticipant(ctx context.Context, participantID string, now time.Time) error {
	if err := ensureParticipant(ctx, s.db, participantID, now); err != nil {
		return wrapErr("ensure participant", err)
	}
	return nil
}

const selectAssignmentSQL = `
	SELECT participant_id, condition_planning, condition_feedback, assigned_at
	FROM condition_assign WHERE participant_id = ?`

func scanAssignment(row *sql.Row) (*domain.ConditionAssignment, error) {
	var a domain.ConditionAssignment
	var planning, feedback, assignedAt string
	err := row.Scan(&a.ParticipantID, &planning, &feedback, &assignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Cell = domain.Cell{Planning: domain.Planning(planning), Feedback: domain.Feedback(feedback)}
	a.AssignedAt = parseStored(assignedAt, "condition_assign.assigned_at")
	return &a, nil
}

// GetAssignment retrieves the participant's condition.
func (s *SQLiteStore) GetAssignment(ctx context.Context, participantID string) (*domain.ConditionAssignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, selectAssignmentSQL, participantID))
	if err != nil {
		return nil, wrapErr("scan assignment row", err)
	}
	return a, nil
}

// AssignCondition returns the existing assignment or persists a newly picked one.
func (s *SQLiteStore) AssignCondition(ctx context.Context, participantID string, now time.Time, pick CellPicker) (*domain.ConditionAssignment, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, wrapErr("begin assignment", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureParticipant(ctx, tx, participantID, now); err != nil {
		return nil, false, wrapErr("ensure participant", err)
	}

	existing, err := scanAssignment(tx.QueryRowContext(ctx, selectAssignmentSQL, participantID))
	if err != nil {
		return nil, false, wrapErr("read assignment", err)
	}
	if existing != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, wrapErr("commit assignment read", err)
		}
		return existing, false, nil
	}

	counts, err := countAssignments(ctx, tx)
	if err != nil {
		return nil, false, wrapErr("count assignments", err)
	}

	cell := pick(counts)
	if !cell.Valid() {
		return nil, false, fmt.Errorf("picker returned unknown cell %q", cell)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO condition_assign (participant_id, condition_planning, condition_feedback, assigned_at)
		VALUES (?, ?, ?, ?)`,
		participantID, string(cell.Planning), string(cell.Feedback), domain.FormatTimestamp(now))
	if err != nil {
		if shared.IsSQLiteUniqueError(err) {
			// Another writer got there first; its row is authoritative.
			_ = tx.Rollback()
			winner, getErr := s.GetAssignment(ctx, participantID)
			if getErr != nil {
				return nil, false, getErr
			}
			if winner != nil {
				slog.Warn("Assignment insert lost a race, keeping existing row", "participant_id", participantID)
				return winner, false, nil
			}
		}
		return nil, false, wrapErr("insert assignment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, wrapErr("commit assignment", err)
	}

	return &domain.ConditionAssignment{
		ParticipantID: participantID,
		Cell:          cell,
		AssignedAt:    now.UTC(),
	}, true, nil
}

func countAssignments(ctx context.Context, q dbtx) (map[domain.Cell]int, error) {
	counts := make(map[domain.Cell]int, 4)
	for _, c := range domain.AllCells() {
		counts[c] = 0
	}

	rows, err := q.QueryContext(ctx, `
		SELECT condition_planning, condition_feedback, COUNT(*)
		FROM condition_assign
		GROUP BY condition_planning, condition_feedback`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close assignment count rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var planning, feedback string
		var n int
		if err := rows.Scan(&planning, &feedback, &n); err != nil {
			return nil, err
		}
		counts[domain.Cell{Planning: domain.Planning(planning), Feedback: domain.Feedback(feedback)}] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// CountAssignments returns the number of participants per cell.
func (s *SQLiteStore) CountAssignments(ctx context.Context) (map[domain.Cell]int, error) {
	counts, err := countAssignments(ctx, s.db)
	if err != nil {
		return nil, wrapErr("count assignments", err)
	}
	return counts, nil
}

// withParticipantTx runs fn in a transaction after making sure the participant row exists.
func (s *SQLiteStore) withParticipantTx(ctx context.Context, op, participantID string, now time.Time, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin "+op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureParticipant(ctx, tx, participantID, now); err != nil {
		return wrapErr("ensure participant", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("commit "+op, err)
	}
	return nil
}

// UpsertBaseline creates or updates the baseline questionnaire.
func (s *SQLiteStore) UpsertBaseline(ctx context.Context, b *domain.Baseline) error {
	return s.withParticipantTx(ctx, "baseline", b.ParticipantID, b.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO baseline (participant_id, grade_major, culture_course, chatbot_exp, stress_1w, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(participant_id) DO UPDATE SET
				grade_major = excluded.grade_major,
				culture_course = excluded.culture_course,
				chatbot_exp = excluded.chatbot_exp,
				stress_1w = excluded.stress_1w`,
			b.ParticipantID, b.GradeMajor, b.CultureCourse, b.ChatbotExp, b.Stress1W,
			domain.FormatTimestamp(b.CreatedAt))
		if err != nil {
			return wrapErr("upsert baseline", err)
		}
		return nil
	})
}

// UpsertMaterialChoice creates or updates the material choice.
func (s *SQLiteStore) UpsertMaterialChoice(ctx context.Context, m *domain.MaterialChoice) error {
	return s.withParticipantTx(ctx, "material choice", m.ParticipantID, m.ChoiceTime, func(tx *sql.Tx) error {
		var rt any
		if m.RTMs != nil {
			rt = *m.RTMs
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO material_choice
				(participant_id, chosen_direction, chosen_label, page_time, choice_time, rt_ms, user_agent)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(participant_id) DO UPDATE SET
				chosen_direction = excluded.chosen_direction,
				chosen_label = excluded.chosen_label,
				page_time = excluded.page_time,
				choice_time = excluded.choice_time,
				rt_ms = excluded.rt_ms,
				user_agent = excluded.user_agent`,
			m.ParticipantID, m.ChosenDirection, m.ChosenLabel, m.PageTime,
			domain.FormatTimestamp(m.ChoiceTime), rt, m.UserAgent)
		if err != nil {
			return wrapErr("upsert material choice", err)
		}
		return nil
	})
}

// UpsertPlanningInput creates or updates the planning input.
func (s *SQLiteStore) UpsertPlanningInput(ctx context.Context, p *domain.PlanningInput) error {
	return s.withParticipantTx(ctx, "planning input", p.ParticipantID, p.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO planning_input
				(participant_id, plan_goal, plan_audience_context, plan_elements, plan_output, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(participant_id) DO UPDATE SET
				plan_goal = excluded.plan_goal,
				plan_audience_context = excluded.plan_audience_context,
				plan_elements = excluded.plan_elements,
				plan_output = excluded.plan_output`,
			p.ParticipantID, p.PlanGoal, p.PlanAudienceContext, p.PlanElements, p.PlanOutput,
			domain.FormatTimestamp(p.CreatedAt))
		if err != nil {
			return wrapErr("upsert planning input", err)
		}
		return nil
	})
}

// HasPlanningInput reports whether the participant submitted a plan.
func (s *SQLiteStore) HasPlanningInput(ctx context.Context, participantID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM planning_input WHERE participant_id = ?`, participantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapErr("read planning input", err)
	}
	return true, nil
}

// ListTranscript returns the participant's chat log.
func (s *SQLiteStore) ListTranscript(ctx context.Context, participantID string) ([]domain.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, turn_id, role, text, ts
		FROM chat_log
		WHERE participant_id = ?
		ORDER BY turn_id, CASE role WHEN 'user' THEN 0 ELSE 1 END, id`, participantID)
	if err != nil {
		return nil, wrapErr("query transcript", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close transcript rows", "error", closeErr)
		}
	}()

	var entries []domain.TranscriptEntry
	for rows.Next() {
		var e domain.TranscriptEntry
		var role, ts string
		if err := rows.Scan(&e.ParticipantID, &e.Turn, &role, &e.Text, &ts); err != nil {
			return nil, wrapErr("scan transcript row", err)
		}
		e.Role = domain.Role(role)
		e.Timestamp = parseStored(ts, "chat_log.ts")
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate transcript", err)
	}
	return entries, nil
}

func countUserTurns(ctx context.Context, q dbtx, participantID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_log
		WHERE participant_id = ? AND role = 'user'`, participantID).Scan(&n)
	return n, err
}

// CountUserTurns returns the number of user-role entries for the participant.
func (s *SQLiteStore) CountUserTurns(ctx context.Context, participantID string) (int, error) {
	n, err := countUserTurns(ctx, s.db, participantID)
	if err != nil {
		return 0, wrapErr("count user turns", err)
	}
	return n, nil
}

// AppendTurn writes both entries of a turn atomically.
func (s *SQLiteStore) AppendTurn(ctx context.Context, pair domain.TurnPair) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.withParticipantTx(ctx, "append turn", pair.ParticipantID, pair.Timestamp, func(tx *sql.Tx) error {
		prior, err := countUserTurns(ctx, tx, pair.ParticipantID)
		if err != nil {
			return wrapErr("count user turns", err)
		}
		if prior+1 != pair.Turn {
			return fmt.Errorf("append turn %d after %d user turns: %w", pair.Turn, prior, domain.ErrConcurrencyConflict)
		}

		for _, e := range pair.Entries() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chat_log (participant_id, turn_id, role, text, ts)
				VALUES (?, ?, ?, ?, ?)`,
				e.ParticipantID, e.Turn, string(e.Role), e.Text, domain.FormatTimestamp(e.Timestamp))
			if err != nil {
				if shared.IsSQLiteUniqueError(err) {
					return fmt.Errorf("append turn %d: %w", pair.Turn, domain.ErrConcurrencyConflict)
				}
				return wrapErr("insert chat entry", err)
			}
		}
		return nil
	})
}

// InsertSurvey writes a survey submission once.
func (s *SQLiteStore) InsertSurvey(ctx context.Context, sub *domain.SurveySubmission) error {
	items := sub.Stage.Items()
	if len(items) == 0 {
		return fmt.Errorf("unknown survey stage %d", sub.Stage)
	}

	cols := make([]string, 0, len(items)+2)
	args := make([]any, 0, len(items)+2)
	cols = append(cols, "participant_id")
	args = append(args, sub.ParticipantID)
	for _, item := range items {
		cols = append(cols, item.Column)
		if v := sub.Answers[item.Key]; v != nil {
			args = append(args, *v)
		} else {
			args = append(args, nil)
		}
	}
	cols = append(cols, "created_at")
	args = append(args, domain.FormatTimestamp(sub.CreatedAt))

	query := fmt.Sprintf("INSERT INTO survey_%s (%s) VALUES (%s)",
		sub.Stage, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	return s.withParticipantTx(ctx, "survey "+sub.Stage.String(), sub.ParticipantID, sub.CreatedAt, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if shared.IsSQLiteUniqueError(err) {
				return fmt.Errorf("survey %s for %s: %w", sub.Stage, sub.ParticipantID, domain.ErrAlreadySubmitted)
			}
			return wrapErr("insert survey", err)
		}
		return nil
	})
}

// GetSurveyCreatedAt returns the raw stored submission timestamp.
func (s *SQLiteStore) GetSurveyCreatedAt(ctx context.Context, participantID string, stage domain.Stage) (string, bool, error) {
	if len(stage.Items()) == 0 {
		return "", false, fmt.Errorf("unknown survey stage %d", stage)
	}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT created_at FROM survey_%s WHERE participant_id = ?", stage),
		participantID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("read survey timestamp", err)
	}
	return createdAt, true, nil
}

// TableCounts returns the row count of every export table.
func (s *SQLiteStore) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(ExportTables))
	for _, table := range ExportTables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, wrapErr("count "+table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// DumpTable returns the column names and stringified rows of an export table.
func (s *SQLiteStore) DumpTable(ctx context.Context, table string) ([]string, [][]string, error) {
	if !IsExportTable(table) {
		return nil, nil, fmt.Errorf("table %q is not exportable", table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, nil, wrapErr("query "+table, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close dump rows", "table", table, "error", closeErr)
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, wrapErr("columns "+table, err)
	}

	var out [][]string
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, wrapErr("scan "+table, err)
		}
		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = stringify(v)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrapErr("iterate "+table, err)
	}
	return cols, out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return domain.FormatTimestamp(t)
	default:
		return fmt.Sprint(t)
	}
}

// parseStored parses a timestamp read back from the database. A malformed
// value yields the zero time; callers that must fail safe read the raw text.
func parseStored(raw, column string) time.Time {
	t, err := domain.ParseTimestamp(raw)
	if err != nil {
		slog.Warn("unparseable stored timestamp", "column", column, "value", raw)
		return time.Time{}
	}
	return t
}
