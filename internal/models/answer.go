package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// YesNo is the classified form of a yes/no answer.
type YesNo string

const (
	YesNoUnset   YesNo = ""
	YesNoYes     YesNo = "yes"
	YesNoNo      YesNo = "no"
	YesNoUnclear YesNo = "unclear"
)

// Answer is the normalized value stored for one answer key. Which fields are
// populated depends on Kind; Raw always keeps what the respondent typed.
type Answer struct {
	Kind     InputKind `json:"kind"`
	Raw      string    `json:"raw"`
	Text     string    `json:"text,omitempty"`
	YesNo    YesNo     `json:"yes_no,omitempty"`
	Severity *int      `json:"severity,omitempty"`
	Values   []string  `json:"values,omitempty"`
	Unclear  bool      `json:"unclear,omitempty"`  // asked, but no usable value after reprompts
	Declined bool      `json:"declined,omitempty"` // asked, respondent gave nothing
}

// IsYes reports whether the answer is a positive yes/no classification.
func (a Answer) IsYes() bool {
	return a.YesNo == YesNoYes
}

// SeverityValue returns the stored severity and whether one exists.
func (a Answer) SeverityValue() (int, bool) {
	if a.Severity == nil {
		return 0, false
	}
	return *a.Severity, true
}

// Display renders the answer for reports and spreadsheets.
func (a Answer) Display() string {
	switch {
	case a.Declined:
		return "Declined to answer"
	case a.Kind == InputSeverityScale && a.Severity != nil:
		return strconv.Itoa(*a.Severity)
	case a.Unclear && a.Raw == "":
		return "Unclear"
	case len(a.Values) > 0:
		return strings.Join(a.Values, ", ")
	case a.Text != "":
		return a.Text
	default:
		return strings.TrimSpace(a.Raw)
	}
}

// AnswerLookup is the read-only view of answers used by predicates and the
// report generator.
type AnswerLookup interface {
	Get(key string) (Answer, bool)
}

// AnswerSet holds the typed answers of one session. It grows monotonically
// and validates each write against its schema of known keys.
type AnswerSet struct {
	schema map[string]InputKind
	values map[string]Answer
}

// NewAnswerSet creates an empty answer set. A nil schema accepts any key.
func NewAnswerSet(schema map[string]InputKind) *AnswerSet {
	return &AnswerSet{
		schema: schema,
		values: make(map[string]Answer),
	}
}

// Get returns the answer stored under key.
func (s *AnswerSet) Get(key string) (Answer, bool) {
	if s == nil {
		return Answer{}, false
	}
	a, ok := s.values[key]
	return a, ok
}

// Has reports whether key has been answered.
func (s *AnswerSet) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of stored answers.
func (s *AnswerSet) Len() int {
	return len(s.values)
}

// Keys returns the stored keys in sorted order.
func (s *AnswerSet) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set validates and stores an answer.
func (s *AnswerSet) Set(key string, a Answer) error {
	if key == "" {
		return fmt.Errorf("%w: empty answer key", ErrInvalidAnswer)
	}
	if s.schema != nil {
		kind, ok := s.schema[key]
		if !ok {
			return fmt.Errorf("%w: unknown answer key %q", ErrInvalidAnswer, key)
		}
		if a.Kind != kind {
			return fmt.Errorf("%w: key %q expects %s, got %s", ErrInvalidAnswer, key, kind, a.Kind)
		}
	}
	if err := a.validateShape(); err != nil {
		return fmt.Errorf("%w: key %q: %v", ErrInvalidAnswer, key, err)
	}
	s.values[key] = a
	return nil
}

func (a Answer) validateShape() error {
	switch a.Kind {
	case InputSeverityScale:
		if a.Severity == nil {
			if !a.Unclear && !a.Declined {
				return fmt.Errorf("severity missing without unclear marker")
			}
			return nil
		}
		if *a.Severity < 0 || *a.Severity > 10 {
			return fmt.Errorf("severity %d out of range", *a.Severity)
		}
	case InputYesNo:
		switch a.YesNo {
		case YesNoYes, YesNoNo, YesNoUnclear:
		default:
			return fmt.Errorf("yes/no value %q not classified", a.YesNo)
		}
	case InputInformational:
		return fmt.Errorf("informational steps take no answer")
	case "":
		return fmt.Errorf("answer kind missing")
	}
	return nil
}

// Map returns a copy of the stored answers.
func (s *AnswerSet) Map() map[string]Answer {
	out := make(map[string]Answer, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Load replaces the contents with previously stored answers, validating each.
func (s *AnswerSet) Load(values map[string]Answer) error {
	fresh := make(map[string]Answer, len(values))
	prev := s.values
	s.values = fresh
	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			s.values = prev
			return err
		}
	}
	return nil
}

// MarshalJSON encodes the stored answers as an object keyed by answer key.
func (s *AnswerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.values)
}

// MapLookup adapts a plain map to AnswerLookup.
type MapLookup map[string]Answer

// Get returns the answer stored under key.
func (m MapLookup) Get(key string) (Answer, bool) {
	a, ok := m[key]
	return a, ok
}
