// Package config provides configuration management for the card service.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides. A configuration file is
// optional: every field has a default.
//
// # Configuration Loading
//
// Configuration can be loaded in three ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("glim.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("glim.yaml")
//
//  3. From an optional file, falling back to defaults plus environment:
//     cfg, err := config.LoadOrDefault(path)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GLIM_SECTION_FIELD.
// For example:
//
//   - GLIM_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - GLIM_CACHE_DIR overrides cache.dir
//   - GLIM_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The deployment variables GITHUB_TOKEN, PORT, HEALTHCHECK_TOKEN and
// HEALTHCHECK_HOST_BYPASS are also honored. Environment variables always
// take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Because files are decoded on top of DefaultConfig, a file that sets a
// boolean to false or a duration to zero keeps that value.
//
// # Validation
//
// Validate collects every problem before returning, as a ValidationError
// listing one FieldError per offending field.
//
// # Reloading
//
// Watcher reloads the file when it changes and passes the validated result
// to a callback. The service uses it to change the log level without a
// restart.
package config
