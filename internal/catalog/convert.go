package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/storage"
)

func toRow(t model.Tracker) (storage.Tracker, error) {
	color, err := json.Marshal(t.Color)
	if err != nil {
		return storage.Tracker{}, fmt.Errorf("encode color: %w", err)
	}
	schedule, err := json.Marshal(t.Schedule)
	if err != nil {
		return storage.Tracker{}, fmt.Errorf("encode schedule: %w", err)
	}
	return storage.Tracker{
		ID:         t.ID,
		CategoryID: t.CategoryID,
		Title:      t.Title,
		Emoji:      t.Emoji,
		Color:      string(color),
		Schedule:   string(schedule),
		Kind:       string(t.Type),
		CreatedAt:  t.CreatedAt,
	}, nil
}

func fromRow(row storage.Tracker) (model.Tracker, error) {
	out := model.Tracker{
		ID:         row.ID,
		CategoryID: row.CategoryID,
		Title:      row.Title,
		Emoji:      row.Emoji,
		Type:       model.TrackerType(row.Kind),
		CreatedAt:  row.CreatedAt,
	}
	if row.Color != "" {
		if err := json.Unmarshal([]byte(row.Color), &out.Color); err != nil {
			return model.Tracker{}, fmt.Errorf("decode color of %s: %w", row.ID, err)
		}
	}
	if row.Schedule != "" {
		if err := json.Unmarshal([]byte(row.Schedule), &out.Schedule); err != nil {
			return model.Tracker{}, fmt.Errorf("decode schedule of %s: %w", row.ID, err)
		}
	}
	return out, nil
}

func categoryFromRow(row storage.Category) model.Category {
	return model.Category{ID: row.ID, Title: row.Title, CreatedAt: row.CreatedAt}
}
