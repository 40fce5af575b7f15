package event

import (
	"encoding/json"
	"fmt"

	apperrors "notify-lab/errors"
)

// Priority of an event. The zero value is PriorityNormal.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	}
	return fmt.Sprintf("Priority(%d)", uint8(p))
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "NORMAL":
		*p = PriorityNormal
	case "HIGH":
		*p = PriorityHigh
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownPriority, raw)
	}
	return nil
}

// Category of an event. The zero value is CategoryGeneral.
type Category uint8

const (
	CategoryGeneral Category = iota
	CategorySystem
)

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategorySystem:
		return "system"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "general":
		*c = CategoryGeneral
	case "system":
		*c = CategorySystem
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, raw)
	}
	return nil
}
