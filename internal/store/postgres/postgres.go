package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Vehicles() store.Vehicles           { return &vehicles{db: s.db} }
func (s *pgStore) Interactions() store.Interactions   { return &interactions{db: s.db} }
func (s *pgStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *pgStore) Messages() store.Messages           { return &messages{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap applies the schema. Deployments that migrate out of band may skip it.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- Vehicles ---

type vehicles struct{ db *sql.DB }

func (v *vehicles) Upsert(ctx context.Context, m *model.Vehicle) error {
	var emb any
	if m.Embedding != nil {
		b, err := json.Marshal(m.Embedding)
		if err != nil {
			return err
		}
		emb = string(b)
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := v.db.ExecContext(ctx, `
        INSERT INTO vehicles (vehicle_id, brand, model, condition, price, mileage, rating, embedding, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (vehicle_id) DO UPDATE SET
            brand=EXCLUDED.brand, model=EXCLUDED.model, condition=EXCLUDED.condition,
            price=EXCLUDED.price, mileage=EXCLUDED.mileage, rating=EXCLUDED.rating,
            embedding=EXCLUDED.embedding
    `, m.VehicleID, m.Brand, m.Model, m.Condition, m.Price, m.Mileage, m.Rating, emb, created)
	return err
}

func (v *vehicles) Get(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	row := v.db.QueryRowContext(ctx, `
        SELECT vehicle_id, brand, model, condition, price, mileage, rating, embedding, created_at
        FROM vehicles WHERE vehicle_id=$1
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
	if emb.Valid && emb.String != "" {
		if err := json.Unmarshal([]byte(emb.String), &m.Embedding); err != nil {
			return nil, err
		}
	}
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
        INSERT INTO interactions (user_id, vehicle_id, type, weight, occurred_at, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (dedupe_key) DO NOTHING
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
        FROM interactions WHERE occurred_at >= $1
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
        FROM interactions WHERE user_id=$1
        ORDER BY occurred_at DESC
        LIMIT $2
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
	var created, updated time.Time
	row := c.db.QueryRowContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id)
        VALUES ($1,$2)
        RETURNING created_at, updated_at
    `, id, m.UserID)
	if err := row.Scan(&created, &updated); err != nil {
		return nil, err
	}
	out := *m
	out.ConversationID = id
	out.CreatedAt = created
	out.UpdatedAt = updated
	return &out, nil
}

func (c *conversations) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var out model.Conversation
	var uid sql.NullString
	row := c.db.QueryRowContext(ctx, `
        SELECT conversation_id, user_id, created_at, updated_at
        FROM conversations WHERE conversation_id=$1
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
                         ORDER BY created_at DESC, seq DESC LIMIT 1), '')
        FROM conversations c
        LEFT JOIN messages m ON m.conversation_id = c.conversation_id
        WHERE c.user_id = $1
        GROUP BY c.conversation_id
        ORDER BY c.updated_at DESC
        LIMIT $2
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
	res, err := c.db.ExecContext(ctx, `UPDATE conversations SET updated_at=$1 WHERE conversation_id=$2`, at.UTC(), conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (c *conversations) Delete(ctx context.Context, conversationID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id=$1`, conversationID)
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
	cited, err := json.Marshal(msg.CitedVehicleIDs)
	if err != nil {
		return nil, err
	}
	var created time.Time
	row := m.db.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, conversation_id, role, content, cited_vehicle_ids)
        VALUES ($1,$2,$3,$4,$5::jsonb)
        RETURNING created_at
    `, id, msg.ConversationID, msg.Role, msg.Content, string(cited))
	if err := row.Scan(&created); err != nil {
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
        FROM messages WHERE conversation_id=$1
        ORDER BY created_at DESC, seq DESC
        LIMIT $2
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
