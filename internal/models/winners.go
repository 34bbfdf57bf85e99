package models

import (
	"encoding/json"
	"sort"
)

// Winners maps a criterion key (or BestPerformerKey) to the resolved winner IDs.
// A single element is an outright winner, more than one element is a tie.
type Winners map[string][]string

// Clone returns a deep copy.
func (w Winners) Clone() Winners {
	out := make(Winners, len(w))
	for k, v := range w {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Keys returns the winner keys in sorted order.
func (w Winners) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether no category has a resolved winner.
func (w Winners) IsEmpty() bool {
	for _, ids := range w {
		if len(ids) > 0 {
			return false
		}
	}
	return true
}

// MarshalJSON renders outright winners as a string and ties as an array.
func (w Winners) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(w))
	for k, ids := range w {
		if len(ids) == 1 {
			out[k] = ids[0]
			continue
		}
		out[k] = append([]string{}, ids...)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both scalar and list winner values.
func (w *Winners) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = CoerceWinners(raw)
	return nil
}
