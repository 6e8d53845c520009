// Package config loads runtime configuration from a YAML file with
// OFFLINE_* environment overrides, layered over built-in defaults.
//
// Example:
//
//	cfg, err := config.Load("") // search default locations
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, _ := runtime.Open(cfg, logger)
//	defer rt.Close()
package config
