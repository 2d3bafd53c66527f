package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural and cross-field errors.
//
// Struct tags carry the per-field rules; the cross-field rules live here:
//   - an enabled Telegram transport needs both a database and a blob bucket
//   - the database URL, when set, must parse as a pool config (checked at
//     connect time, not here)
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			first := errs[0]
			return fmt.Errorf("invalid value for %s (rule: %s)", first.Namespace(), first.Tag())
		}
		return err
	}

	if cfg.Telegram.Enabled() {
		if !cfg.Database.Enabled() {
			return fmt.Errorf("telegram transport requires database.url to be set")
		}
		if cfg.Blob.Bucket == "" {
			return fmt.Errorf("telegram transport requires blob.bucket to be set")
		}
	}

	return nil
}
