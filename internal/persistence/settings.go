package persistence

import (
	"context"
	"fmt"
	"strconv"

	"meridian/internal/core"
)

const settingHITLRequired = "hitl_required"

// settingsRepo implements SettingsRepository as a name/value table
type settingsRepo struct {
	repoBase
}

func (r *settingsRepo) Get(ctx context.Context) (core.Settings, error) {
	rows, err := r.queryRows(ctx, r.sb.Select("name", "value").From("settings"))
	if err != nil {
		return core.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	var settings core.Settings
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return core.Settings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		switch key {
		case settingHITLRequired:
			settings.HITLRequired, _ = strconv.ParseBool(value)
		}
	}
	return settings, rows.Err()
}

func (r *settingsRepo) Save(ctx context.Context, settings core.Settings) error {
	_, err := r.exec(ctx, r.sb.Insert("settings").
		Columns("name", "value", "updated_at").
		Values(settingHITLRequired, strconv.FormatBool(settings.HITLRequired), r.now()).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
