package status

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the catalogue of status lines to rotate through.
// giveaway_ended lines may contain {username}.
type Config struct {
	NoGiveaways    []string `yaml:"no_giveaways"`
	GiveawayActive []string `yaml:"giveaway_active"`
	GiveawayEnded  []string `yaml:"giveaway_ended"`
}

// DefaultConfig returns the built-in catalogue.
func DefaultConfig() Config {
	return Config{
		NoGiveaways: []string{
			"Just Chilling like a cat",
			"Meowing at life",
			"Purrin Along..",
		},
		GiveawayActive: []string{
			"I see the Nekos are Giving a wish!",
			"A Giveaway is in progress nya!",
			"Nya! Something is cooking!~",
		},
		GiveawayEnded: []string{
			"Nya~! {username} won!",
			"OwO! {username} wish has been granted!",
			"Nekos has chosen {username}!",
		},
	}
}

// LoadConfig reads a YAML catalogue from path. A missing file yields the
// defaults; empty lists in the file fall back to the default list.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read status config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse status config %s: %w", path, err)
	}

	if len(cfg.NoGiveaways) == 0 {
		cfg.NoGiveaways = def.NoGiveaways
	}
	if len(cfg.GiveawayActive) == 0 {
		cfg.GiveawayActive = def.GiveawayActive
	}
	if len(cfg.GiveawayEnded) == 0 {
		cfg.GiveawayEnded = def.GiveawayEnded
	}
	return cfg, nil
}
