package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sections maps a grouping key to an ordered list of truck numbers. Key
// insertion order from the optimizer is preserved.
type Sections struct {
	keys  []string
	items map[string][]int
}

func NewSections() Sections {
	return Sections{items: map[string][]int{}}
}

func (s *Sections) Append(key string, values ...int) {
	if s.items == nil {
		s.items = map[string][]int{}
	}
	if _, ok := s.items[key]; !ok {
		s.keys = append(s.keys, key)
		s.items[key] = []int{}
	}
	s.items[key] = append(s.items[key], values...)
}

func (s Sections) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s Sections) Get(key string) []int {
	return s.items[key]
}

func (s Sections) Len() int {
	return len(s.keys)
}

func (s Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(s.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Sections) UnmarshalJSON(data []byte) error {
	*s = NewSections()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sections: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("sections: expected key, got %v", tok)
		}
		var values []int
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("sections[%s]: %w", key, err)
		}
		s.Append(key, values...)
	}
	_, err = dec.Token()
	return err
}
