// Package config handles loading and validating shopfloor simulation configuration.
//
// This package manages:
//   - Loading the runtime configuration from YAML files
//   - Overriding with environment variables
//   - Loading the scenario layout file (entities, templates, choreography)
//   - Validation of required fields and cross references
//
// Security Considerations:
//   - Broker credentials and tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scenarios, err := config.LoadScenarios(cfg.Simulation.ScenarioFile)
package config
