// Package config loads and validates the Lumiere LIFX bridge configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Loading a .env file from the working directory when one exists
//   - Overriding with LUMIERE_* environment variables
//   - Validation of required fields
//
// The LIFX token should be supplied through LUMIERE_LIFX_API_KEY rather
// than committed to a config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.LIFX.Selector)
package config
