// Package config loads, validates and persists the YAML settings shared by the
// fleet binaries. Every field has a built-in default mirroring the layout of a
// stock ESP-miner build tree, so both tools are usable with no settings file.
package config
