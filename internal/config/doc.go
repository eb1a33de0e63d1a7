// Package config loads lendtrack configuration.
//
// # Sources
//
// Values are layered, later sources winning:
//
//  1. Default(), usable without any file
//  2. The config file: YAML, or TOML when the name ends in .toml
//  3. LENDTRACK_<SECTION>_<KEY> environment variables
//
// ${VAR_NAME} references inside the file are expanded before decoding; an
// unset variable expands to the empty string.
//
// # File Location
//
// DefaultPath resolves LENDTRACK_CONFIG, then
// $XDG_CONFIG_HOME/lendtrack/config.yaml, then ~/.config/lendtrack/config.yaml.
// The database defaults to DataDir()/lendtrack.db.
//
// # Example
//
//	database:
//	  driver: "sqlite"          # or "sqlite3" for the cgo driver
//	  path: "~/.local/share/lendtrack/lendtrack.db"
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text or json
//
//	loans:
//	  default_days: 7
//
//	auth:
//	  session_secret: "${LENDTRACK_SECRET}"
//	  session_ttl: "12h"
//	  bcrypt_cost: 10
//
//	bootstrap:
//	  admin_id: "admin"
//	  admin_name: "Administrator"
//	  admin_secret: "123"       # change after first login
package config
