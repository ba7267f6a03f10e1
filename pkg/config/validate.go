package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks a loaded configuration for inconsistencies that the
// struct tags alone cannot express.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid value for %s (%s=%s)",
				f.Namespace(), f.Tag(), f.Param())
		}
		return err
	}

	if cfg.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if cfg.S3.Region == "" {
		return fmt.Errorf("s3.region is required")
	}

	if cfg.Optimization.MinWorkers > cfg.Optimization.MaxWorkers {
		return fmt.Errorf("optimization.min_workers (%d) must not exceed max_workers (%d)",
			cfg.Optimization.MinWorkers, cfg.Optimization.MaxWorkers)
	}
	if cfg.Optimization.QueueHighWater > cfg.Optimization.QueueSize {
		return fmt.Errorf("optimization.queue_high_water (%d) must not exceed queue_size (%d)",
			cfg.Optimization.QueueHighWater, cfg.Optimization.QueueSize)
	}
	if cfg.Optimization.BatchMaxFileSize > cfg.Optimization.MaxFileSize {
		return fmt.Errorf("optimization.batch_max_file_size must not exceed max_file_size")
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}

	return nil
}
