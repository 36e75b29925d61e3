package topology

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateSwitchConfig(cfg SwitchConfig) error {
	return formatValidationError(validate.Struct(cfg))
}

func validateHostConfig(cfg HostConfig) error {
	return formatValidationError(validate.Struct(cfg))
}

// validateNode checks that the node's config matches its role.
func validateNode(n Node) error {
	if n.Name == "" {
		return fmt.Errorf("%w: empty node name", ErrInvalidConfig)
	}

	switch n.Role {
	case RoleSwitch:
		if n.Switch == nil || n.Host != nil {
			return fmt.Errorf("node %q: %w: switch requires switch config only", n.Name, ErrInvalidConfig)
		}
		if err := validateSwitchConfig(*n.Switch); err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
	case RoleHost:
		if n.Host == nil || n.Switch != nil {
			return fmt.Errorf("node %q: %w: host requires host config only", n.Name, ErrInvalidConfig)
		}
		if err := validateHostConfig(*n.Host); err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
	default:
		return fmt.Errorf("node %q: %w: unknown role %q", n.Name, ErrInvalidConfig, n.Role)
	}

	if n.Class == "" {
		return fmt.Errorf("node %q: %w: missing device class", n.Name, ErrInvalidConfig)
	}

	return nil
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Report the first failing field only
	for _, e := range validationErrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field)
		case "min":
			return fmt.Errorf("%w: %s must be at least %s", ErrInvalidConfig, field, e.Param())
		case "max":
			return fmt.Errorf("%w: %s must not exceed %s", ErrInvalidConfig, field, e.Param())
		default:
			return fmt.Errorf("%w: %s is not a valid %s (%v)", ErrInvalidConfig, field, e.Tag(), e.Value())
		}
	}

	return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
}
