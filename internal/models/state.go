package models

import "time"

// UserState is the persisted dialog state of one user: the current step
// of the booking flow plus the values collected so far. It round-trips
// through JSON, so numeric temp values may come back as float64.
type UserState struct {
	UserID    int64                  `json:"user_id"`
	Step      string                 `json:"step"`
	TempData  map[string]interface{} `json:"temp_data,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Set stores a temp value, allocating the map if needed.
func (s *UserState) Set(key string, value interface{}) {
	if s.TempData == nil {
		s.TempData = make(map[string]interface{})
	}
	s.TempData[key] = value
}

// GetInt64 returns a temp value as int64, tolerating the float64 that
// JSON decoding produces. Missing or non-numeric values yield 0.
func (s *UserState) GetInt64(key string) int64 {
	switch v := s.TempData[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// GetString returns a temp value as string, or "" if absent.
func (s *UserState) GetString(key string) string {
	if v, ok := s.TempData[key].(string); ok {
		return v
	}
	return ""
}

// GetTime parses a temp value stored as RFC3339. Returns the zero time
// if the key is absent or malformed.
func (s *UserState) GetTime(key string) time.Time {
	v, ok := s.TempData[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
