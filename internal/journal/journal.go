// Package journal keeps an append-only record of device lifecycle
// transitions in the local badger store. It is a diagnostic aid only;
// no functional device state survives a power cycle through it.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
)

const keyPrefix = "journal/"

type Entry struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Detail string    `json:"detail,omitempty"`
}

// Journal implements usbsvc.Observer. Lifecycle callbacks must not
// block, so entries go through a buffered feed and are written to disk
// by the Start loop; when the feed is full the entry is dropped.
type Journal struct {
	log  *zap.Logger
	db   *badger.DB
	now  func() time.Time
	feed chan Entry
}

func New(log *zap.Logger, db *badger.DB, now func() time.Time) *Journal {
	return &Journal{
		log:  log,
		db:   db,
		now:  now,
		feed: make(chan Entry, 64),
	}
}

func (j *Journal) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-j.feed:
			if err := j.write(entry); err != nil {
				j.log.Error("Failed to write journal entry", zap.Error(err))
			}
		}
	}
}

func (j *Journal) write(entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	key := []byte(fmt.Sprintf("%s%020d", keyPrefix, entry.At.UnixNano()))
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

func (j *Journal) record(event, detail string) {
	entry := Entry{At: j.now(), Event: event, Detail: detail}
	select {
	case j.feed <- entry:
	default:
		j.log.Warn("Journal feed full, dropping entry", zap.String("event", event))
	}
}

func (j *Journal) Reset() {
	j.record("reset", "")
}

func (j *Journal) Addressed(addr uint8) {
	j.record("addressed", fmt.Sprintf("addr=%d", addr))
}

func (j *Journal) Configured(configured bool) {
	j.record("configured", fmt.Sprintf("configured=%v", configured))
}

func (j *Journal) Suspended(suspended bool) {
	j.record("suspended", fmt.Sprintf("suspended=%v", suspended))
}

func (j *Journal) Disabled() {
	j.record("disabled", "")
}

// List returns all recorded entries in chronological order.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte(keyPrefix)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var entry Entry
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}
