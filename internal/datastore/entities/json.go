package entities

import "encoding/json"

// List columns (indicators, recommended actions, notification channels,
// video clips) are stored as JSON-encoded text so the schema stays portable
// across sqlite and mysql.

// EncodeStringList marshals values for storage. nil and empty both encode to
// "[]" so the column never holds SQL-null JSON.
func EncodeStringList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeStringList unmarshals a stored list column. Malformed or empty text
// decodes to nil rather than failing a read path.
func DecodeStringList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}
