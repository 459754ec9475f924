package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			return formatValidationErrors(vErrs)
		}
		return err
	}

	for name, h := range cfg.Hosts {
		if name == "" {
			return errors.New("hosts: empty host name")
		}
		if h.User == "" && cfg.SSH.DefaultUser == "" {
			return fmt.Errorf("hosts.%s: no user and ssh.default_user is empty", name)
		}
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
