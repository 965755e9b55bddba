package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Uses go-playground/validator for declarative validation via struct tags,
// with additional custom validation for rules that cannot be expressed in
// tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The badger catalog persists; it needs a path before any run.
	if cfg.Catalog.Type == "badger" {
		if path, _ := cfg.Catalog.Badger["db_path"].(string); path == "" {
			return fmt.Errorf("catalog.badger: db_path is required when catalog.type is badger")
		}
	}

	// A hash shape that matches nothing would silently classify every
	// content-addressed record as unknown.
	if cfg.Classifier.HashLength > 0 && len(cfg.Classifier.HashPrefix) > cfg.Classifier.HashLength {
		return fmt.Errorf("classifier: hash_prefix %q is longer than hash_length %d",
			cfg.Classifier.HashPrefix, cfg.Classifier.HashLength)
	}

	for i, res := range cfg.Classifier.Resolutions {
		if res == "" {
			return fmt.Errorf("classifier.resolutions[%d]: resolution must not be empty", i)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
