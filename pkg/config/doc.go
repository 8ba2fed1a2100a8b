// Package config loads and validates meddevices run settings.
//
// # Usage
//
//	cfg, err := config.LoadFile("meddevices.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg.DataDir = flagDataDir
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
// YAML files may reference environment variables with ${VAR_NAME}. The
// CLI loads a .env file first, so secrets can live outside the YAML:
//
//	mongo:
//	  host: ${MONGO_HOST}
//	  database: medical_devices
//
// # Precedence
//
// Defaults are overlaid by the YAML file, which is overlaid by command
// line flags. Validation runs once, after the flags are applied, so a
// flag can correct a bad file value. MongoConfig.Validate normalizes the
// port to its absolute value and is only needed by commands that load.
package config
