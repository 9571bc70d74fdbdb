package record

import "time"

// dateFields is the fixed allowlist of fields rehydrated from ISO strings
// back into time values after a trip through JSON
var dateFields = map[string]bool{
	"createdAt":   true,
	"updatedAt":   true,
	"scheduledAt": true,
	"startedAt":   true,
	"endedAt":     true,
	"joinedAt":    true,
	"lastReadAt":  true,
}

// RehydrateDates parses allowlisted ISO string fields back into time.Time.
// Unparseable values stay as strings rather than failing the load
func RehydrateDates(r Record) {
	for field := range dateFields {
		s, ok := r[field].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			r[field] = t
		}
	}
}
