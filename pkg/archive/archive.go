package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/report"
	"github.com/sudesh1611/scanreport/pkg/types"
	"github.com/sudesh1611/scanreport/pkg/utils"
)

const (
	SchemaVersion = 1

	metadataBucket = "scanreport"
	metadataKey    = "metadata"
	reportsBucket  = "reports"
)

var (
	ErrNotFound      = xerrors.New("report not found")
	ErrSchemaVersion = xerrors.New("unsupported archive schema version")
)

type Metadata struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is one archived canonical report. Provider and ID come from the
// bucket and key the entry is stored under.
type Entry struct {
	Provider types.Provider  `json:"-"`
	ID       string          `json:"-"`
	Name     string          `json:"name"`
	StoredAt time.Time       `json:"stored_at"`
	Report   json.RawMessage `json:"report,omitempty"`
}

// Store keeps the latest canonical report per provider and report id in a
// bolt database laid out as reports/<provider>/<id>.
type Store struct {
	db     *bolt.DB
	path   string
	clock  clock.PassiveClock
	logger *log.Logger
}

type Option func(*Store)

func WithClock(c clock.PassiveClock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open opens or creates the archive at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:  path,
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.WithPrefixOf(s.logger, "archive")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, xerrors.Errorf("failed to mkdir: %w", err)
	}

	s.logger.Debug("Opening archive", log.FilePath(path))
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("failed to open archive: %w", err)
	}
	s.db = db

	if err = s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return xerrors.Errorf("failed to create a bucket: %w", err)
		}
		if v := root.Get([]byte(metadataKey)); v != nil {
			var m Metadata
			if err = json.Unmarshal(v, &m); err != nil {
				return xerrors.Errorf("failed to unmarshal metadata: %w", err)
			}
			if m.Version != SchemaVersion {
				return xerrors.Errorf("archive schema %d, want %d: %w", m.Version, SchemaVersion, ErrSchemaVersion)
			}
			return nil
		}
		return s.putMetadata(root)
	})
}

func (s *Store) putMetadata(root *bolt.Bucket) error {
	b, err := json.Marshal(Metadata{
		Version:   SchemaVersion,
		UpdatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return xerrors.Errorf("failed to marshal metadata: %w", err)
	}
	return root.Put([]byte(metadataKey), b)
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return xerrors.Errorf("failed to close archive: %w", err)
	}
	return nil
}

func (s *Store) Metadata() (Metadata, error) {
	var m Metadata
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(metadataBucket))
		if root == nil {
			return nil
		}
		if v := root.Get([]byte(metadataKey)); v != nil {
			return json.Unmarshal(v, &m)
		}
		return nil
	})
	if err != nil {
		return Metadata{}, xerrors.Errorf("failed to get metadata: %w", err)
	}
	return m, nil
}

// Put stores c under provider, replacing an earlier report with the same id.
func (s *Store) Put(provider types.Provider, c *report.Canonical) error {
	if c == nil || c.ID == "" {
		return xerrors.New("report without id cannot be archived")
	}
	body, err := utils.MarshalSorted(c)
	if err != nil {
		return xerrors.Errorf("failed to marshal report: %w", err)
	}
	now := s.clock.Now().UTC()
	v, err := json.Marshal(Entry{
		Name:     c.Name,
		StoredAt: now,
		Report:   body,
	})
	if err != nil {
		return xerrors.Errorf("failed to marshal entry: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(reportsBucket))
		if err != nil {
			return xerrors.Errorf("failed to create a bucket: %w", err)
		}
		nested, err := root.CreateBucketIfNotExists([]byte(provider))
		if err != nil {
			return xerrors.Errorf("failed to create a bucket: %w", err)
		}
		if err = nested.Put([]byte(c.ID), v); err != nil {
			return xerrors.Errorf("failed to put report: %w", err)
		}
		return s.putMetadata(tx.Bucket([]byte(metadataBucket)))
	})
	if err != nil {
		s.logger.Error("Failed to archive report", log.ReportID(c.ID), log.Err(err))
		return xerrors.Errorf("error in archive update: %w", err)
	}
	s.logger.Info("Archived report", log.String("provider", string(provider)), log.ReportID(c.ID))
	return nil
}

// Get returns the archived report, or ErrNotFound.
func (s *Store) Get(provider types.Provider, id string) (Entry, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(reportsBucket))
		if root == nil {
			return nil
		}
		nested := root.Bucket([]byte(provider))
		if nested == nil {
			return nil
		}
		if v := nested.Get([]byte(id)); v != nil {
			// Copy the returned value
			value = make([]byte, len(v))
			copy(value, v)
		}
		return nil
	})
	if err != nil {
		return Entry{}, xerrors.Errorf("failed to get data from archive: %w", err)
	}
	if value == nil {
		return Entry{}, xerrors.Errorf("%s/%s: %w", provider, id, ErrNotFound)
	}

	var e Entry
	if err = json.Unmarshal(value, &e); err != nil {
		return Entry{}, xerrors.Errorf("failed to unmarshal entry %s/%s: %w", provider, id, err)
	}
	e.Provider, e.ID = provider, id
	return e, nil
}

// Find looks id up under every known provider.
func (s *Store) Find(id string) (Entry, error) {
	for _, p := range types.Providers {
		e, err := s.Get(p, id)
		if err == nil {
			return e, nil
		} else if !xerrors.Is(err, ErrNotFound) {
			return Entry{}, err
		}
	}
	return Entry{}, xerrors.Errorf("%s: %w", id, ErrNotFound)
}

// List returns every archived entry without its report body, ordered by
// provider and id.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(reportsBucket))
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(provider []byte) error {
			return root.Bucket(provider).ForEach(func(k, v []byte) error {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return xerrors.Errorf("failed to unmarshal entry %s/%s: %w", provider, k, err)
				}
				e.Provider, e.ID, e.Report = types.Provider(provider), string(k), nil
				entries = append(entries, e)
				return nil
			})
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to list archive: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *Store) Delete(provider types.Provider, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(reportsBucket))
		if root == nil {
			return ErrNotFound
		}
		nested := root.Bucket([]byte(provider))
		if nested == nil || nested.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return nested.Delete([]byte(id))
	})
	if err != nil {
		return xerrors.Errorf("failed to delete %s/%s: %w", provider, id, err)
	}
	s.logger.Info("Deleted archived report", log.String("provider", string(provider)), log.ReportID(id))
	return nil
}
