package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// brokers checks a comma-separated list of host:port pairs.
		_ = validate.RegisterValidation("brokers", func(fl validator.FieldLevel) bool {
			brokers := splitBrokers(fl.Field().String())
			if len(brokers) == 0 {
				return false
			}
			for _, broker := range brokers {
				host, port, err := net.SplitHostPort(broker)
				if err != nil || host == "" || port == "" {
					return false
				}
			}
			return true
		})
	})
	return validate
}

// Validate checks cfg against the constraints declared on its fields and
// reports every violation by its dotted config key.
func (c *Config) Validate() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s: failed %q (value %v)", configKeyFor(fe), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// configKeyFor maps a validator namespace such as "Config.Dashboard.SessionLimit"
// back to its dotted config key.
func configKeyFor(fe validator.FieldError) string {
	for key := range configKeys {
		if strings.EqualFold(strings.ReplaceAll(key, "_", ""), strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))) {
			return key
		}
	}
	return fe.Namespace()
}
