// Package config provides configuration loading and defaults for tokentriage.
package config

// DefaultConfigDir is the default location for tokentriage configuration.
const DefaultConfigDir = "~/.config/tokentriage"

// DefaultDBName is the filename for the SQLite snapshot database.
const DefaultDBName = "tokentriage.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
