// Package config handles loading and validating gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GATEWAY_* environment variables
//   - Validation of required fields (all errors reported at once)
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, Redis password) should be
// set via environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
