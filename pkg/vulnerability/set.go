package vulnerability

import (
	"sort"

	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/set"
)

// Set is a deduplicating collection of vulnerability records. It is owned by
// a single report and is not safe for concurrent mutation.
type Set struct {
	records set.Set[Record]
	logger  *log.Logger
}

type Option func(*Set)

func WithLogger(l *log.Logger) Option {
	return func(s *Set) {
		s.logger = l
	}
}

func NewSet(opts ...Option) *Set {
	s := &Set{
		records: set.New[Record](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger)
	return s
}

// Add parses raw and stores the record. A document that cannot be parsed is
// logged and skipped; the error is returned so callers may count failures,
// but it never needs to stop a batch.
func (s *Set) Add(raw []byte) error {
	r, err := Parse(raw)
	if err != nil {
		s.logger.Error("Failed to create vulnerability record", log.Err(err), log.Payload(raw))
		return err
	}
	s.records.Append(r)
	return nil
}

// Insert stores an already built record.
func (s *Set) Insert(records ...Record) {
	s.records.Append(records...)
}

func (s *Set) Len() int {
	return s.records.Len()
}

// All returns every record in a stable order.
func (s *Set) All() []Record {
	v := s.records.Values()
	sort.Slice(v, func(i, j int) bool {
		return v[i].compare(v[j]) < 0
	})
	return v
}

func (s *Set) ByID(id string) *Set {
	return s.filter(func(r Record) bool { return r.ID == id })
}

func (s *Set) BySeverity(severity string) *Set {
	return s.filter(func(r Record) bool { return r.Severity == severity })
}

func (s *Set) ByPackageName(name string) *Set {
	return s.filter(func(r Record) bool { return r.PackageName == name })
}

func (s *Set) ByPackageNameAndVersion(name, version string) *Set {
	return s.filter(func(r Record) bool {
		return r.PackageName == name && r.PackageVersion == version
	})
}

func (s *Set) filter(fn func(Record) bool) *Set {
	return &Set{
		records: s.records.Filter(fn),
		logger:  s.logger,
	}
}
