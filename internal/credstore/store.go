package credstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Store is the in-memory form of the persisted credential document: an
// insertion-ordered identity → TokenRecord mapping plus the pointer to
// the current identity. A Store is owned by exactly one lock-scoped
// critical section at a time; it is not safe for concurrent use.
type Store struct {
	current string
	order   []string
	records map[string]*TokenRecord

	migrated bool
}

// NewStore returns an empty store with no current identity.
func NewStore() *Store {
	return &Store{records: make(map[string]*TokenRecord)}
}

// CurrentIdentity returns the current identity, if any.
func (s *Store) CurrentIdentity() (string, bool) {
	return s.current, s.current != ""
}

// SetCurrent points the store at an existing identity.
func (s *Store) SetCurrent(identity string) error {
	if _, ok := s.records[identity]; !ok {
		return fmt.Errorf("identity %q has no stored record", identity)
	}
	s.current = identity
	return nil
}

// Get returns the record for an identity.
func (s *Store) Get(identity string) (*TokenRecord, bool) {
	rec, ok := s.records[identity]
	return rec, ok
}

// Set stores a record for an identity. New identities are appended to
// the listing order; existing identities keep their position.
func (s *Store) Set(identity string, rec *TokenRecord) {
	if _, ok := s.records[identity]; !ok {
		s.order = append(s.order, identity)
	}
	s.records[identity] = rec
}

// Delete removes an identity's record. If it was current, the pointer is
// cleared. Reports whether a record existed.
func (s *Store) Delete(identity string) bool {
	if _, ok := s.records[identity]; !ok {
		return false
	}
	delete(s.records, identity)
	for i, id := range s.order {
		if id == identity {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.current == identity {
		s.current = ""
	}
	return true
}

// Identities returns all identities in insertion order.
func (s *Store) Identities() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.records) }

// validate enforces the structural invariants of a loaded document:
// the current pointer, if set, must name a present identity.
func (s *Store) validate() error {
	if s.current != "" {
		if _, ok := s.records[s.current]; !ok {
			return fmt.Errorf("current identity %q has no record", s.current)
		}
	}
	return nil
}

// MarshalJSON writes the persisted document shape. encoding/json sorts
// map keys, so the identities object is emitted by hand to preserve
// insertion order across save/load cycles.
func (s *Store) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"current_identity":`)

	if s.current == "" {
		buf.WriteString("null")
	} else {
		cur, err := json.Marshal(s.current)
		if err != nil {
			return nil, err
		}
		buf.Write(cur)
	}

	buf.WriteString(`,"identities":{`)
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		rec, err := json.Marshal(s.records[id])
		if err != nil {
			return nil, err
		}
		buf.Write(rec)
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}

// UnmarshalJSON reads the persisted document, tolerating unknown
// top-level fields and preserving the on-disk identity order.
func (s *Store) UnmarshalJSON(data []byte) error {
	var doc struct {
		CurrentIdentity *string         `json:"current_identity"`
		Identities      json.RawMessage `json:"identities"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	s.order = nil
	s.records = make(map[string]*TokenRecord)
	s.current = ""
	if doc.CurrentIdentity != nil {
		s.current = *doc.CurrentIdentity
	}

	if len(doc.Identities) == 0 {
		return nil
	}

	// Walk the object token by token: encoding/json map decoding would
	// lose the key order the listing contract depends on.
	dec := json.NewDecoder(bytes.NewReader(doc.Identities))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("identities: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		identity, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("identities: expected string key, got %v", keyTok)
		}

		rec := &TokenRecord{}
		if err := dec.Decode(rec); err != nil {
			return fmt.Errorf("identities[%s]: %w", identity, err)
		}
		s.Set(identity, rec)
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}

	return nil
}
