package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct-tag constraints and the cross-field rules the tags
// cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}

	if cfg.Notify.Backend == "webhook" && cfg.Notify.WebhookURL == "" {
		return errors.New("config: notify.webhook_url is required for the webhook backend")
	}
	if cfg.Notify.Backend == "desktop" && cfg.Notify.Command == "" {
		return errors.New("config: notify.command is required for the desktop backend")
	}

	return nil
}
