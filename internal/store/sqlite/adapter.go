package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// New opens a SQLite database at path, applies the schema, and returns a store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := &sqliteStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wires a store onto an existing connection (used by factory and tests).
func NewWithDB(db *sql.DB) (store.Store, error) {
	s := &sqliteStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Vehicles() store.Vehicles           { return &vehicles{db: s.db} }
func (s *sqliteStore) Interactions() store.Interactions   { return &interactions{db: s.db} }
func (s *sqliteStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *sqliteStore) Messages() store.Messages           { return &messages{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func encodeVec(vec []float32) (any, error) {
	if vec == nil {
		return nil, nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeVec(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw.String), &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// --- Vehicles ---

type vehicles struct{ db *sql.DB }

func (v *vehicles) Upsert(ctx context.Context, m *model.Vehicle) error {
	emb, err := encodeVec(m.Embedding)
	if err != nil {
		return err
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = v.db.ExecContext(ctx, `
        INSERT INTO vehicles (vehicle_id, brand, model, condition, price, mileage, rating, embedding, created_at)
        VALUES (?,?,?,?,?,?,?,?,?)
        ON CONFLICT(vehicle_id) DO UPDATE SET
            brand=excluded.brand, model=excluded.model, condition=excluded.condition,
            price=excluded.price, mileage=excluded.mileage, rating=excluded.rating,
            embedding=excluded.embedding
    `, m.VehicleID, m.Brand, m.Model, m.Condition, m.Price, m.Mileage, m.Rating, emb, created)
	return err
}

func (v *vehicles) Get(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	row := v.db.QueryRowContext(ctx, `
        SELECT vehicle_id, brand, model, condition, price, mileage, rating, embedding, created_at
        FROM vehicles WHERE vehicle_id = ?
    `, vehicleID)
	out, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return out, err
}

func (v *vehicles) ListAll(ctx context.Context) ([]*model.Vehicle, error) {
	rows, err := v.db.QueryContext(ctx, `
        SELECT vehicle_id, brand, model, condition, price, mileage, rating, embedding, created_at
        FROM vehicles
    `)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Vehicle
	for rows.Next() {
		m, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanVehicle(r rowScanner) (*model.Vehicle, error) {
	var m model.Vehicle
	var emb sql.NullString
	if err := r.Scan(&m.VehicleID, &m.Brand, &m.Model, &m.Condition, &m.Price, &m.Mileage, &m.Rating, &emb, &m.CreatedAt); err != nil {
		return nil, err
	}
	vec, err := decodeVec(emb)
	if err != nil {
		return nil, err
	}
	m.Embedding = vec
	return &m, nil
}

// --- Interactions ---

type interactions struct{ db *sql.DB }

func (i *interactions) Record(ctx context.Context, e *model.InteractionEvent) (bool, error) {
	weight := e.Weight
	if weight == 0 {
		weight = e.Type.BaseWeight()
	}
	res, err := i.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO interactions (user_id, vehicle_id, type, weight, occurred_at, dedupe_key)
        VALUES (?,?,?,?,?,?)
    `, e.UserID, e.VehicleID, string(e.Type), weight, e.OccurredAt.UTC(), e.DedupeKey())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (i *interactions) ListSince(ctx context.Context, since time.Time) ([]*model.InteractionEvent, error) {
	rows, err := i.db.QueryContext(ctx, `
        SELECT user_id, vehicle_id, type, weight, occurred_at
        FROM interactions WHERE occurred_at >= ?
        ORDER BY occurred_at DESC
    `, since.UTC())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanInteractions(rows)
}

func (i *interactions) ListForUser(ctx context.Context, userID string, limit int) ([]*model.InteractionEvent, error) {
	rows, err := i.db.QueryContext(ctx, `
        SELECT user_id, vehicle_id, type, weight, occurred_at
        FROM interactions WHERE user_id = ?
        ORDER BY occurred_at DESC
        LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanInteractions(rows)
}

func scanInteractions(rows *sql.Rows) ([]*model.InteractionEvent, error) {
	var out []*model.InteractionEvent
	for rows.Next() {
		var e model.InteractionEvent
		var uid sql.NullString
		var typ string
		if err := rows.Scan(&uid, &e.VehicleID, &typ, &e.Weight, &e.OccurredAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			u := uid.String
			e.UserID = &u
		}
		e.Type = model.InteractionType(typ)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- Conversations ---

type conversations struct{ db *sql.DB }

func (c *conversations) Create(ctx context.Context, m *model.Conversation) (*model.Conversation, error) {
	id := m.ConversationID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id, created_at, updated_at)
        VALUES (?,?,?,?)
    `, id, m.UserID, now, now)
	if err != nil {
		return nil, err
	}
	out := *m
	out.ConversationID = id
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (c *conversations) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var out model.Conversation
	var uid sql.NullString
	row := c.db.QueryRowContext(ctx, `
        SELECT conversation_id, user_id, created_at, updated_at
        FROM conversations WHERE conversation_id = ?
    `, conversationID)
	if err := row.Scan(&out.ConversationID, &uid, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if uid.Valid {
		u := uid.String
		out.UserID = &u
	}
	return &out, nil
}

func (c *conversations) ListForUser(ctx context.Context, userID string, limit int) ([]*model.ConversationSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT c.conversation_id, c.updated_at,
               COUNT(m.message_id),
               COALESCE((SELECT content FROM messages
                         WHERE conversation_id = c.conversation_id
                         ORDER BY created_at DESC, rowid DESC LIMIT 1), '')
        FROM conversations c
        LEFT JOIN messages m ON m.conversation_id = c.conversation_id
        WHERE c.user_id = ?
        GROUP BY c.conversation_id
        ORDER BY c.updated_at DESC
        LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		if err := rows.Scan(&s.ConversationID, &s.UpdatedAt, &s.MessageCount, &s.Preview); err != nil {
			return nil, err
		}
		s.Preview = store.TruncatePreview(s.Preview)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (c *conversations) Touch(ctx context.Context, conversationID string, at time.Time) error {
	res, err := c.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE conversation_id = ?`, at.UTC(), conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (c *conversations) Delete(ctx context.Context, conversationID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	id := msg.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	cited, err := json.Marshal(msg.CitedVehicleIDs)
	if err != nil {
		return nil, err
	}
	_, err = m.db.ExecContext(ctx, `
        INSERT INTO messages (message_id, conversation_id, role, content, cited_vehicle_ids, created_at)
        VALUES (?,?,?,?,?,?)
    `, id, msg.ConversationID, msg.Role, msg.Content, string(cited), created)
	if err != nil {
		return nil, err
	}
	out := *msg
	out.MessageID = id
	out.CreatedAt = created
	return &out, nil
}

func (m *messages) List(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	// newest tail first, then reversed into transcript order
	rows, err := m.db.QueryContext(ctx, `
        SELECT message_id, conversation_id, role, content, cited_vehicle_ids, created_at
        FROM messages WHERE conversation_id = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Message
	for rows.Next() {
		var msg model.Message
		var cited string
		if err := rows.Scan(&msg.MessageID, &msg.ConversationID, &msg.Role, &msg.Content, &cited, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if cited != "" && cited != "null" {
			if err := json.Unmarshal([]byte(cited), &msg.CitedVehicleIDs); err != nil {
				return nil, err
			}
		}
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
