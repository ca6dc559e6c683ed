package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "sellerpilot/agent/contract"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions"`

	SessionID string    `bun:"session_id,pk"`
	SellerID  string    `bun:"seller_id,notnull,default:''"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID string    `bun:"session_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	RequestID string    `bun:"request_id,notnull,default:''"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type factRow struct {
	bun.BaseModel `bun:"table:facts"`

	SessionID string    `bun:"session_id,pk"`
	FactKey   string    `bun:"fact_key,pk"`
	FactValue string    `bun:"fact_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// PostgresStore is the shared-deployment store. Same tables as the sqlite
// store, managed through bun.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects and ensures the schema exists.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*sessionRow)(nil), (*messageRow)(nil), (*factRow)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsureSession(ctx context.Context, sessionID, sellerID string) error {
	now := time.Now().UTC()
	row := &sessionRow{SessionID: sessionID, SellerID: sellerID, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("seller_id = CASE WHEN EXCLUDED.seller_id != '' THEN EXCLUDED.seller_id ELSE sessions.seller_id END").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PostgresStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	return s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exists(ctx)
}

// AppendMessages bulk-inserts the turn in one statement; the whole turn lands
// or none of it does.
func (s *PostgresStore) AppendMessages(ctx context.Context, sessionID string, msgs []contractx.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]messageRow, 0, len(msgs))
	for _, msg := range msgs {
		created := msg.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		rows = append(rows, messageRow{
			SessionID: sessionID,
			Role:      msg.Role,
			Content:   msg.Content,
			RequestID: msg.RequestID,
			CreatedAt: created,
		})
	}
	_, err := s.db.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (s *PostgresStore) Messages(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	var rows []messageRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	msgs := make([]contractx.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, contractx.Message{
			Role:      r.Role,
			Content:   r.Content,
			RequestID: r.RequestID,
			CreatedAt: r.CreatedAt,
		})
	}
	return msgs, nil
}

func (s *PostgresStore) UpsertFacts(ctx context.Context, sessionID string, facts map[string]string) error {
	if len(facts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]factRow, 0, len(facts))
	for _, key := range contractx.SortedFactKeys(facts) {
		rows = append(rows, factRow{
			SessionID: sessionID,
			FactKey:   key,
			FactValue: facts[key],
			UpdatedAt: now,
		})
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (session_id, fact_key) DO UPDATE").
		Set("fact_value = EXCLUDED.fact_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *PostgresStore) Facts(ctx context.Context, sessionID string) (map[string]string, error) {
	var rows []factRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	facts := make(map[string]string, len(rows))
	for _, r := range rows {
		facts[r.FactKey] = r.FactValue
	}
	return facts, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
