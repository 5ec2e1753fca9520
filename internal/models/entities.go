package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Canonical entity categories.
const (
	EntityPersons       = "persons"
	EntityOrganizations = "organizations"
	EntityLocations     = "locations"
	EntityEvents        = "events"
)

var entityAliases = map[string]string{
	"person":        EntityPersons,
	"persons":       EntityPersons,
	"people":        EntityPersons,
	"organization":  EntityOrganizations,
	"organizations": EntityOrganizations,
	"organisation":  EntityOrganizations,
	"organisations": EntityOrganizations,
	"orgs":          EntityOrganizations,
	"location":      EntityLocations,
	"locations":     EntityLocations,
	"places":        EntityLocations,
	"event":         EntityEvents,
	"events":        EntityEvents,
}

// Entities maps an entity category to the names recognized for it.
// A nil Entities is stored as NULL; malformed stored data reads back as an
// empty mapping.
type Entities map[string][]string

// NewEntities returns a mapping with every canonical category present and empty.
func NewEntities() Entities {
	return Entities{
		EntityPersons:       {},
		EntityOrganizations: {},
		EntityLocations:     {},
		EntityEvents:        {},
	}
}

// NormalizeEntities converts a loosely shaped model response into Entities.
// Category keys are lowercased and folded onto the canonical names; values
// that are not strings are dropped; names are trimmed and de-duplicated.
func NormalizeEntities(raw map[string]interface{}) Entities {
	out := NewEntities()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		category := strings.ToLower(strings.TrimSpace(key))
		if canonical, ok := entityAliases[category]; ok {
			category = canonical
		}
		if category == "" {
			continue
		}
		out[category] = appendNames(out[category], raw[key])
	}
	return out
}

func appendNames(existing []string, value interface{}) []string {
	if existing == nil {
		existing = []string{}
	}
	var candidates []interface{}
	switch v := value.(type) {
	case []interface{}:
		candidates = v
	case []string:
		for _, s := range v {
			candidates = append(candidates, s)
		}
	case string:
		candidates = []interface{}{v}
	}
	for _, candidate := range candidates {
		name, ok := candidate.(string)
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || containsFold(existing, name) {
			continue
		}
		existing = append(existing, name)
	}
	return existing
}

func containsFold(list []string, name string) bool {
	for _, item := range list {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}

// Count returns the number of names across all categories.
func (e Entities) Count() int {
	total := 0
	for _, names := range e {
		total += len(names)
	}
	return total
}

// Value implements driver.Valuer
func (e Entities) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string][]string(e))
	if err != nil {
		return nil, fmt.Errorf("encode entities: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (e *Entities) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*e = Entities{}
		return nil
	}

	var decoded map[string][]string
	if err := json.Unmarshal(data, &decoded); err != nil || decoded == nil {
		*e = Entities{}
		return nil
	}
	*e = Entities(decoded)
	return nil
}

// GormDataType implements schema.GormDataTypeInterface
func (Entities) GormDataType() string {
	return "json"
}

// GormDBDataType picks the JSON column type for the active dialect.
func (Entities) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "sqlite":
		return "JSON"
	}
	return "TEXT"
}
