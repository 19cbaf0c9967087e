// Package config provides configuration types, loading, validation and hot
// reload for avafields.
//
// Configuration is YAML. Values may reference environment variables with
// ${VAR} or ${VAR:-default}; "$$" escapes a literal dollar sign:
//
//	server:
//	  port: ${AVAFIELDS_PORT:-8080}
//	schemas:
//	  path: /etc/avafields/schemas.yaml
//	fields:
//	  default: ":identifiable"
//
// Unset values keep the defaults from DefaultConfig. A Watcher reloads the
// configuration when the file, or any additional watched file, changes.
package config
