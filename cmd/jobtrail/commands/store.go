package commands

import (
	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/jobs"
)

// loadConfig loads and validates configuration for commands that touch the store
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "invalid configuration"),
			"run 'jobtrail am where' to see which file set the bad value")
	}
	return cfg, nil
}

// openStore opens the configured job store
func openStore(cfg *am.Config) (*jobs.Store, error) {
	store, err := jobs.Open(cfg.GetStorePath(), jobs.Options{LockTimeout: cfg.LockTimeout()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open job store")
	}
	return store, nil
}

// loadStore is loadConfig followed by openStore
func loadStore() (*am.Config, *jobs.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}
