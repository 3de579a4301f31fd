// Package config loads and validates HomeLink Core configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and environment variable overrides applied last:
//
//	cfg, err := config.Load("configs/config.yaml")
//
// Environment overrides follow the HOMELINK_SECTION_KEY pattern, for
// example HOMELINK_MQTT_HOST or HOMELINK_DATABASE_PATH. Secrets (broker
// password, InfluxDB token) should always be supplied via environment
// variables rather than committed to the config file.
package config
