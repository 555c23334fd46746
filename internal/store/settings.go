package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/heirvault/internal/models"
	"github.com/dmitrijs2005/heirvault/internal/repositories/metadata"
)

const switchConfigKey = "dead_man_switch"

// LoadSwitchConfig reads the persisted DeadManSwitchConfig. When none has
// been saved yet, def is returned with found=false.
func LoadSwitchConfig(ctx context.Context, md metadata.Repository, def models.DeadManSwitchConfig) (cfg models.DeadManSwitchConfig, found bool, err error) {
	raw, err := md.Get(ctx, switchConfigKey)
	if err != nil {
		return def, false, err
	}
	if raw == nil {
		return def, false, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return def, false, fmt.Errorf("failed to decode switch config: %w", err)
	}
	return cfg, true, nil
}

// SaveSwitchConfig persists cfg.
func SaveSwitchConfig(ctx context.Context, md metadata.Repository, cfg models.DeadManSwitchConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode switch config: %w", err)
	}
	return md.Set(ctx, switchConfigKey, raw)
}
