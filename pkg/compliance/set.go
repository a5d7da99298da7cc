package compliance

import (
	"sort"

	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/set"
)

// Set is a deduplicating collection of compliance records.
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

// Add parses raw and stores the record; unparsable input is logged and skipped.
func (s *Set) Add(raw []byte) error {
	r, err := Parse(raw)
	if err != nil {
		s.logger.Error("Failed to create compliance record", log.Err(err), log.Payload(raw))
		return err
	}
	s.records.Append(r)
	return nil
}

func (s *Set) Len() int {
	return s.records.Len()
}

// All returns every record ordered by Compare.
func (s *Set) All() []Record {
	v := s.records.Values()
	sort.Slice(v, func(i, j int) bool {
		return v[i].Compare(v[j]) < 0
	})
	return v
}
