// Package config provides configuration management for geodash.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later sources
// overriding earlier ones:
//
//  1. Default values (Default)
//  2. A YAML file: $GEODASH_CONFIG_FILE, geodash.yaml or configs/geodash.yaml
//  3. Environment variables
//
// # Environment Variables
//
// Variables are namespaced GEODASH_<SECTION>_<FIELD>:
//
//	GEODASH_SERVER_PORT=8080
//	GEODASH_LOGGING_LEVEL=debug
//	GEODASH_PIPELINE_MAX_RECORDS=500000
//	GEODASH_PIPELINE_BUDGET=90s
//	GEODASH_SESSION_TTL=30m
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
