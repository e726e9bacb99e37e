package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// NodeID is a node identifier normalized to its string form.
// It decodes from either a JSON string or a JSON number.
type NodeID string

func (n *NodeID) UnmarshalJSON(b []byte) error {
	s, _, err := decodeFlexible(b)
	if err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	*n = NodeID(s)
	return nil
}

// CommunityID is an opaque community label. Its identity is the string
// form returned by Key; Int is only used where an integer value is needed
// (palette selection). It re-encodes in the JSON kind it was decoded from.
type CommunityID struct {
	key     string
	numeric bool
}

// NewCommunityID creates a string-valued community id
func NewCommunityID(key string) CommunityID {
	return CommunityID{key: key}
}

// IntCommunityID creates a numeric community id
func IntCommunityID(n int64) CommunityID {
	return CommunityID{key: strconv.FormatInt(n, 10), numeric: true}
}

// Key returns the canonical string form
func (c CommunityID) Key() string {
	return c.key
}

// IsZero reports whether the id is absent
func (c CommunityID) IsZero() bool {
	return c.key == ""
}

// Int parses the id as an integer
func (c CommunityID) Int() (int64, bool) {
	n, err := strconv.ParseInt(c.key, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c CommunityID) String() string {
	return c.key
}

func (c CommunityID) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return []byte(c.key), nil
	}
	return json.Marshal(c.key)
}

func (c *CommunityID) UnmarshalJSON(b []byte) error {
	s, numeric, err := decodeFlexible(b)
	if err != nil {
		return fmt.Errorf("community id: %w", err)
	}
	*c = CommunityID{key: s, numeric: numeric}
	return nil
}

// decodeFlexible decodes a JSON string, number or null into its canonical string
func decodeFlexible(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return "", false, nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	}

	// Integer literals keep every digit; float64 would round past 2^53
	if !bytes.ContainsAny(b, ".eE") {
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return strconv.FormatInt(n, 10), true, nil
		}
		if _, err := strconv.ParseFloat(string(b), 64); err == nil {
			return string(b), true, nil
		}
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return "", false, fmt.Errorf("expected string or number, got %s", b)
	}
	// 1 and 1.0 must normalize to the same key
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), true, nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true, nil
}

// CommunityEntry assigns one node to one community
type CommunityEntry struct {
	Node      NodeID      `json:"node"`
	Community CommunityID `json:"community"`
}

// CommunityAssignment is the partition returned by a detection run.
// Entries may reference nodes that are not in the current graph; consumers skip them.
type CommunityAssignment []CommunityEntry

// DistinctCount returns the number of unique community ids
func (a CommunityAssignment) DistinctCount() int {
	seen := make(map[string]struct{}, len(a))
	for _, e := range a {
		seen[e.Community.Key()] = struct{}{}
	}
	return len(seen)
}

// ByNode indexes the assignment by node id. The first entry for a node wins.
func (a CommunityAssignment) ByNode() map[NodeID]CommunityEntry {
	index := make(map[NodeID]CommunityEntry, len(a))
	for _, e := range a {
		if _, exists := index[e.Node]; !exists {
			index[e.Node] = e
		}
	}
	return index
}

// CommunitySize is the member count of one community
type CommunitySize struct {
	Community CommunityID `json:"community"`
	Size      int         `json:"size"`
}

// Sizes returns member counts per community, largest first.
// Ties are ordered by community key so the result is stable.
func (a CommunityAssignment) Sizes() []CommunitySize {
	counts := make(map[string]*CommunitySize)
	order := make([]string, 0)
	for _, e := range a {
		key := e.Community.Key()
		if c, ok := counts[key]; ok {
			c.Size++
			continue
		}
		counts[key] = &CommunitySize{Community: e.Community, Size: 1}
		order = append(order, key)
	}

	sizes := make([]CommunitySize, 0, len(order))
	for _, key := range order {
		sizes = append(sizes, *counts[key])
	}
	sort.SliceStable(sizes, func(i, j int) bool {
		if sizes[i].Size != sizes[j].Size {
			return sizes[i].Size > sizes[j].Size
		}
		return sizes[i].Community.Key() < sizes[j].Community.Key()
	})
	return sizes
}

// Clone returns an independent copy
func (a CommunityAssignment) Clone() CommunityAssignment {
	if a == nil {
		return nil
	}
	out := make(CommunityAssignment, len(a))
	copy(out, a)
	return out
}
