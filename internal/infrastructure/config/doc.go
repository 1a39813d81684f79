// Package config handles loading and validating Gray Twin Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (GRAYTWIN_*)
//   - Validation of backend and file storage selections
//   - Default value handling
//
// Security Considerations:
//   - Credentials (database DSNs, S3 keys, MQTT passwords, InfluxDB tokens)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Backend.Type)
package config
