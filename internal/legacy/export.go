// Package legacy reads the /users document exported from the legacy realtime database
// and loads it into a domain.Service.
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Export is the parsed /users tree. Usernames keeps the document's key order.
type Export struct {
	Usernames []string
	Users     map[string]User
}

// User is one participant as stored by the legacy application.
type User struct {
	Password  string    `json:"password"`
	Exercises Exercises `json:"exercises"`
}

// Exercise is one legacy log entry. IDs were small integers.
type Exercise struct {
	ID           json.RawMessage `json:"id"`
	ActivityType string          `json:"activity_type"`
	Note         string          `json:"note"`
	TimeMin      int             `json:"time"`
	Calorie      int             `json:"calorie"`
	Steps        int             `json:"steps"`
	Date         string          `json:"date"`
}

// Exercises accepts both shapes the database returns for a list: a JSON array,
// possibly with null holes, or an object keyed by index.
type Exercises []Exercise

// UnmarshalJSON implements json.Unmarshaler.
func (e *Exercises) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = nil
		return nil
	}

	if trimmed[0] == '[' {
		var items []*Exercise
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		out := make(Exercises, 0, len(items))
		for _, item := range items {
			if item != nil {
				out = append(out, *item)
			}
		}
		*e = out
		return nil
	}

	var keyed map[string]Exercise
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return err
	}
	keys := make([]string, 0, len(keyed))
	for key := range keyed {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return indexLess(keys[i], keys[j]) })

	out := make(Exercises, 0, len(keys))
	for _, key := range keys {
		out = append(out, keyed[key])
	}
	*e = out
	return nil
}

func indexLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

// Load parses an export, preserving the order users appear in.
func Load(r io.Reader) (*Export, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if tok == nil {
		return &Export{Users: map[string]User{}}, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("export must be a JSON object keyed by username")
	}

	export := &Export{Users: make(map[string]User)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		username, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", keyTok)
		}

		var user User
		if err := dec.Decode(&user); err != nil {
			return nil, fmt.Errorf("decode user %q: %w", username, err)
		}
		if _, dup := export.Users[username]; !dup {
			export.Usernames = append(export.Usernames, username)
		}
		export.Users[username] = user
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return export, nil
}
