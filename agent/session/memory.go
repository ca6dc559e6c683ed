package session

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	contractx "sellerpilot/agent/contract"
)

// Memory wraps a Store with per-session mutual exclusion. Load and Append on
// the same session id are serialized; different sessions never contend.
type Memory struct {
	store       Store
	lockTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is one session's mutex. refs counts the holder plus waiters;
// the map entry is evicted when refs drops to zero, so the map is bounded by
// the number of sessions in flight.
type sessionLock struct {
	ch   chan struct{}
	refs int
}

var _ contractx.SessionMemory = (*Memory)(nil)

// NewMemory builds the memory layer. lockTimeout bounds how long a request
// waits for its session; exceeding it is a fast-fail, not a deadlock.
func NewMemory(store Store, lockTimeout time.Duration) *Memory {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Memory{
		store:       store,
		lockTimeout: lockTimeout,
		locks:       make(map[string]*sessionLock),
	}
}

func (m *Memory) acquire(ctx context.Context, sessionID string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.lockTimeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.unref(sessionID, l)
		}, nil
	case <-ctx.Done():
		m.unref(sessionID, l)
		return nil, ctx.Err()
	case <-timer.C:
		m.unref(sessionID, l)
		return nil, fmt.Errorf("%w: session %s", contractx.ErrSessionLockTimeout, sessionID)
	}
}

func (m *Memory) unref(sessionID string, l *sessionLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, sessionID)
	}
	m.mu.Unlock()
}

// Load returns the session's ordered messages and current facts. A session
// id never seen before loads as an empty record.
func (m *Memory) Load(ctx context.Context, sessionID string) (contractx.SessionRecord, error) {
	release, err := m.acquire(ctx, sessionID)
	if err != nil {
		return contractx.SessionRecord{}, err
	}
	defer release()

	msgs, err := m.store.Messages(ctx, sessionID)
	if err != nil {
		return contractx.SessionRecord{}, fmt.Errorf("load messages: %w", err)
	}
	facts, err := m.store.Facts(ctx, sessionID)
	if err != nil {
		return contractx.SessionRecord{}, fmt.Errorf("load facts: %w", err)
	}
	return contractx.SessionRecord{
		SessionID: sessionID,
		Messages:  msgs,
		Facts:     facts,
	}, nil
}

// Lookup is the read path for session history. Unlike Load, a session id that
// was never created is an error, so callers can distinguish "no such session"
// from "session with no messages yet".
func (m *Memory) Lookup(ctx context.Context, sessionID string) (contractx.SessionRecord, error) {
	ok, err := m.store.SessionExists(ctx, sessionID)
	if err != nil {
		return contractx.SessionRecord{}, fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return contractx.SessionRecord{}, fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, sessionID)
	}
	return m.Load(ctx, sessionID)
}

// Append persists the turn's messages in order and refreshes derived facts
// from the full message history. The whole operation holds the session lock,
// so a concurrent Append cannot interleave its messages with ours.
func (m *Memory) Append(ctx context.Context, req contractx.AppendRequest) error {
	release, err := m.acquire(ctx, req.SessionID)
	if err != nil {
		return err
	}
	defer release()

	if err := m.store.EnsureSession(ctx, req.SessionID, req.SellerID); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	if err := m.store.AppendMessages(ctx, req.SessionID, req.Messages); err != nil {
		return fmt.Errorf("append messages: %w", err)
	}

	history, err := m.store.Messages(ctx, req.SessionID)
	if err != nil {
		return fmt.Errorf("reload history: %w", err)
	}
	facts := ExtractFacts(history)
	if req.SellerName != "" {
		facts["seller_name"] = req.SellerName
	}
	if err := m.store.UpsertFacts(ctx, req.SessionID, facts); err != nil {
		return fmt.Errorf("upsert facts: %w", err)
	}
	return nil
}

var sellerNameRe = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm)\s+([A-Za-z][A-Za-z '-]{1,60})`)

var focusKeywords = map[string][]string{
	"pricing":    {"margin", "price", "pricing", "discount"},
	"compliance": {"compliance", "policy", "suspension", "violation"},
	"inventory":  {"stock", "inventory", "restock", "out of stock"},
	"listing":    {"listing", "seo", "title", "keyword"},
}

// ExtractFacts derives memory facts from user messages. It is deterministic
// and idempotent: facts are recomputed from the whole history on every
// append, so re-running it never accumulates stale values.
func ExtractFacts(history []contractx.Message) map[string]string {
	facts := make(map[string]string)

	var userText []string
	for _, msg := range history {
		if msg.Role != contractx.RoleUser {
			continue
		}
		userText = append(userText, msg.Content)

		// The newest self-introduction wins.
		if groups := sellerNameRe.FindStringSubmatch(msg.Content); groups != nil {
			facts["seller_name"] = strings.TrimSpace(groups[1])
		}
	}

	joined := strings.ToLower(strings.Join(userText, "\n"))

	var markets []string
	for _, mk := range contractx.KnownMarketplaces() {
		if strings.Contains(joined, string(mk)) {
			markets = append(markets, string(mk))
		}
	}
	if len(markets) > 0 {
		facts["marketplaces"] = strings.Join(markets, ",")
	}

	var areas []string
	for area, words := range focusKeywords {
		for _, w := range words {
			if strings.Contains(joined, w) {
				areas = append(areas, area)
				break
			}
		}
	}
	if len(areas) > 0 {
		sort.Strings(areas)
		facts["focus_areas"] = strings.Join(areas, ",")
	}

	return facts
}
