// Package config handles loading and validating the device catalog configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//
// Source definitions are configuration data: built-in sources can be
// retuned (refresh interval, endpoints) or disabled from the sources list,
// and new sources can be added when they reuse a known rule set.
//
// Usage:
//
//	cfg, err := config.Load("configs/catalog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Update.Concurrency)
package config
