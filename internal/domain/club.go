package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Club is a venue offering one or more courts.
//
// Upstream attributes other than the id (name, address, location, openhours, ...)
// are passed through untouched.
type Club struct {
	ID         int
	Attributes map[string]any
}

type Court struct {
	ID         int
	Attributes map[string]any
}

type CourtWithAvailability struct {
	Court
	Available []Slot
}

type ClubWithAvailability struct {
	Club
	Courts []CourtWithAvailability
}

func marshalWithID(id int, attributes map[string]any, extra map[string]any) ([]byte, error) {
	merged := make(map[string]any, len(attributes)+len(extra)+1)
	maps.Copy(merged, attributes)
	maps.Copy(merged, extra)
	merged["id"] = id
	return json.Marshal(merged)
}

func unmarshalWithID(data []byte) (int, map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, nil, err
	}

	rawID, ok := raw["id"]
	if !ok {
		return 0, nil, fmt.Errorf("missing id")
	}
	floatID, ok := rawID.(float64)
	if !ok || floatID != float64(int(floatID)) {
		return 0, nil, fmt.Errorf("invalid id: %v", rawID)
	}
	delete(raw, "id")

	return int(floatID), raw, nil
}

func (c Club) MarshalJSON() ([]byte, error) {
	return marshalWithID(c.ID, c.Attributes, nil)
}

func (c *Club) UnmarshalJSON(data []byte) error {
	id, attributes, err := unmarshalWithID(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal club: %w", err)
	}
	c.ID = id
	c.Attributes = attributes
	return nil
}

func (c Court) MarshalJSON() ([]byte, error) {
	return marshalWithID(c.ID, c.Attributes, nil)
}

func (c *Court) UnmarshalJSON(data []byte) error {
	id, attributes, err := unmarshalWithID(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal court: %w", err)
	}
	c.ID = id
	c.Attributes = attributes
	return nil
}

func (c CourtWithAvailability) MarshalJSON() ([]byte, error) {
	available := c.Available
	if available == nil {
		available = []Slot{}
	}
	return marshalWithID(c.ID, c.Attributes, map[string]any{"available": available})
}

func (c ClubWithAvailability) MarshalJSON() ([]byte, error) {
	courts := c.Courts
	if courts == nil {
		courts = []CourtWithAvailability{}
	}
	return marshalWithID(c.ID, c.Attributes, map[string]any{"courts": courts})
}
