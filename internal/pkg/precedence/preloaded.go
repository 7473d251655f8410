package precedence

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/internetarchive/frontier/pkg/models"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/leveldb"
	"github.com/sirupsen/logrus"
)

// HistoryStore gives what a previous crawl recorded about a URI. The frontier
// only reads from it.
type HistoryStore interface {
	Get(identity string) (map[string]interface{}, bool, error)
}

// Preloaded reuses the precedence a previous crawl recorded for the same
// identity, and defers to its fallback policy otherwise.
type Preloaded struct {
	history  HistoryStore
	fallback Policy
	field    string
	logger   logrus.FieldLogger
}

// NewPreloaded returns a Preloaded policy reading field from history
func NewPreloaded(history HistoryStore, fallback Policy, field string, logger logrus.FieldLogger) *Preloaded {
	if field == "" {
		field = DefaultField
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Preloaded{
		history:  history,
		fallback: fallback,
		field:    field,
		logger:   logger,
	}
}

// Assign implements Policy
func (p *Preloaded) Assign(r *models.Record) {
	if bypass(r) {
		return
	}

	entry, found, err := p.history.Get(r.Identity)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"uri":   r.URL,
			"error": err,
		}).Warn("Unable to read precedence history")
	}

	if found {
		if value, ok := toInt(entry[p.field]); ok {
			r.Precedence = value
			return
		}
	}

	p.fallback.Assign(r)
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}

	return 0, false
}

// LevelDBHistory is a HistoryStore on a leveldb database, one JSON document
// per identity.
type LevelDBHistory struct {
	DB leveldb.Store
}

// OpenHistory opens (or creates) the history database in dir
func OpenHistory(dir string) (*LevelDBHistory, error) {
	db, err := leveldb.NewStore(leveldb.Options{
		Path:  path.Join(dir, "history"),
		Codec: encoding.JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	return &LevelDBHistory{DB: db}, nil
}

// Get implements HistoryStore
func (h *LevelDBHistory) Get(identity string) (entry map[string]interface{}, found bool, err error) {
	found, err = h.DB.Get(identity, &entry)
	return entry, found, err
}

// Put stores entry for identity. It is used to load history, never by the
// frontier itself.
func (h *LevelDBHistory) Put(identity string, entry map[string]interface{}) error {
	return h.DB.Set(identity, entry)
}

// Close closes the database
func (h *LevelDBHistory) Close() error {
	return h.DB.Close()
}
