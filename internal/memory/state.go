package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"veilleur/internal/core"
)

// State is the SQLite-backed half of the memory subsystem: the content
// hash set, the report cache, the bounded conversation log, the topic
// keyword map and the per-document summary cache.
type State struct {
	db   *sql.DB
	path string
}

// NewState opens (or creates) the state database under dataDir. An
// empty dataDir uses an in-memory database, which is what tests want.
func NewState(dataDir string) (*State, error) {
	dbPath := ":memory:"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create data directory: %v", core.ErrMemory, err)
		}
		dbPath = filepath.Join(dataDir, "veilleur.db")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", core.ErrMemory, err)
	}

	state := &State{db: db, path: dbPath}
	if err := state.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize database: %v", core.ErrMemory, err)
	}
	return state, nil
}

func (s *State) initialize() error {
	itemsTable := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`

	hashIndex := `CREATE INDEX IF NOT EXISTS idx_items_hash ON items (content_hash);`

	cacheTable := `
	CREATE TABLE IF NOT EXISTS report_cache (
		topic TEXT PRIMARY KEY,
		report TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`

	conversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		user TEXT NOT NULL,
		assistant TEXT NOT NULL,
		metadata TEXT
	);`

	keywordsTable := `
	CREATE TABLE IF NOT EXISTS topic_keywords (
		topic TEXT PRIMARY KEY,
		keywords TEXT NOT NULL
	);`

	summariesTable := `
	CREATE TABLE IF NOT EXISTS summary_cache (
		content_hash TEXT PRIMARY KEY,
		summary TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`

	tables := []string{itemsTable, hashIndex, cacheTable, conversationsTable, keywordsTable, summariesTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *State) Close() error {
	return s.db.Close()
}

// InsertItem records an item id and its content hash.
func (s *State) InsertItem(id, contentHash, source string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO items (id, content_hash, source, created_at) VALUES (?, ?, ?, ?)`,
		id, contentHash, source, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to insert item: %v", core.ErrMemory, err)
	}
	return nil
}

// HasHash reports whether a content hash is already known.
func (s *State) HasHash(contentHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM items WHERE content_hash = ?)`, contentHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check hash: %v", core.ErrMemory, err)
	}
	return exists, nil
}

// ItemsBefore returns the ids of all items created before cutoff.
func (s *State) ItemsBefore(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM items WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query old items: %v", core.ErrMemory, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan item id: %v", core.ErrMemory, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteItems removes item records, and with them their hashes.
func (s *State) DeleteItems(ids []string) error {
	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%w: failed to delete item: %v", core.ErrMemory, err)
		}
	}
	return nil
}

// ItemCount returns the number of recorded items.
func (s *State) ItemCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count items: %v", core.ErrMemory, err)
	}
	return count, nil
}

// CachePut stores a report under its topic, replacing any previous one.
func (s *State) CachePut(topic string, report *core.FinalReport, at time.Time) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal report: %v", core.ErrMemory, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO report_cache (topic, report, created_at) VALUES (?, ?, ?)`,
		topic, string(payload), at.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to cache report: %v", core.ErrMemory, err)
	}
	return nil
}

// CacheGet returns the cached report for a topic with its storage time.
func (s *State) CacheGet(topic string) (*core.FinalReport, time.Time, error) {
	var payload string
	var createdAt time.Time
	err := s.db.QueryRow(
		`SELECT report, created_at FROM report_cache WHERE topic = ?`, topic).Scan(&payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: failed to read cache: %v", core.ErrMemory, err)
	}

	var report core.FinalReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: failed to unmarshal cached report: %v", core.ErrMemory, err)
	}
	return &report, createdAt, nil
}

// CacheTopics lists every cached topic.
func (s *State) CacheTopics() ([]string, error) {
	rows, err := s.db.Query(`SELECT topic FROM report_cache`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list cache topics: %v", core.ErrMemory, err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("%w: failed to scan topic: %v", core.ErrMemory, err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// DeleteCacheBefore removes cache entries older than cutoff.
func (s *State) DeleteCacheBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM report_cache WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to expire cache: %v", core.ErrMemory, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearCache drops every cache entry.
func (s *State) ClearCache() error {
	if _, err := s.db.Exec(`DELETE FROM report_cache`); err != nil {
		return fmt.Errorf("%w: failed to clear cache: %v", core.ErrMemory, err)
	}
	return nil
}

// AppendConversation records one exchange and trims the log to
// maxEntries, dropping the oldest rows first.
func (s *State) AppendConversation(entry core.ConversationEntry, maxEntries int) error {
	metadata := ""
	if len(entry.Metadata) > 0 {
		payload, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal conversation metadata: %v", core.ErrMemory, err)
		}
		metadata = string(payload)
	}

	_, err := s.db.Exec(
		`INSERT INTO conversations (created_at, user, assistant, metadata) VALUES (?, ?, ?, ?)`,
		entry.Timestamp.UTC(), entry.User, entry.Assistant, metadata)
	if err != nil {
		return fmt.Errorf("%w: failed to append conversation: %v", core.ErrMemory, err)
	}

	if maxEntries > 0 {
		_, err = s.db.Exec(
			`DELETE FROM conversations WHERE seq NOT IN
			 (SELECT seq FROM conversations ORDER BY seq DESC LIMIT ?)`, maxEntries)
		if err != nil {
			return fmt.Errorf("%w: failed to trim conversation log: %v", core.ErrMemory, err)
		}
	}
	return nil
}

// ConversationCount returns the number of recorded exchanges.
func (s *State) ConversationCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count conversations: %v", core.ErrMemory, err)
	}
	return count, nil
}

// LastConversations returns the n most recent exchanges, oldest first.
func (s *State) LastConversations(n int) ([]core.ConversationEntry, error) {
	rows, err := s.db.Query(
		`SELECT created_at, user, assistant, metadata FROM conversations
		 ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read conversations: %v", core.ErrMemory, err)
	}
	defer rows.Close()

	var entries []core.ConversationEntry
	for rows.Next() {
		var entry core.ConversationEntry
		var metadata string
		if err := rows.Scan(&entry.Timestamp, &entry.User, &entry.Assistant, &metadata); err != nil {
			return nil, fmt.Errorf("%w: failed to scan conversation: %v", core.ErrMemory, err)
		}
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &entry.Metadata)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ClearConversations drops the whole conversation log.
func (s *State) ClearConversations() error {
	if _, err := s.db.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("%w: failed to clear conversations: %v", core.ErrMemory, err)
	}
	return nil
}

// SetKeywords records the derived keywords of a topic.
func (s *State) SetKeywords(topic string, keywords []string) error {
	payload, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal keywords: %v", core.ErrMemory, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO topic_keywords (topic, keywords) VALUES (?, ?)`,
		topic, string(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to store keywords: %v", core.ErrMemory, err)
	}
	return nil
}

// Keywords returns the derived keywords of a topic, or nil.
func (s *State) Keywords(topic string) ([]string, error) {
	var payload string
	err := s.db.QueryRow(`SELECT keywords FROM topic_keywords WHERE topic = ?`, topic).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read keywords: %v", core.ErrMemory, err)
	}

	var keywords []string
	if err := json.Unmarshal([]byte(payload), &keywords); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal keywords: %v", core.ErrMemory, err)
	}
	return keywords, nil
}

// PutSummary caches a document summary keyed by content hash.
func (s *State) PutSummary(contentHash string, summary *core.DocumentSummary, at time.Time) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal summary: %v", core.ErrMemory, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO summary_cache (content_hash, summary, created_at) VALUES (?, ?, ?)`,
		contentHash, string(payload), at.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to cache summary: %v", core.ErrMemory, err)
	}
	return nil
}

// GetSummary returns a cached summary no older than maxAge, or nil.
func (s *State) GetSummary(contentHash string, maxAge time.Duration, now time.Time) (*core.DocumentSummary, error) {
	var payload string
	var createdAt time.Time
	err := s.db.QueryRow(
		`SELECT summary, created_at FROM summary_cache WHERE content_hash = ?`, contentHash).
		Scan(&payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read summary cache: %v", core.ErrMemory, err)
	}
	if maxAge > 0 && now.Sub(createdAt) > maxAge {
		return nil, nil
	}

	var summary core.DocumentSummary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal cached summary: %v", core.ErrMemory, err)
	}
	return &summary, nil
}
