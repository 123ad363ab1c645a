// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file and MEDIATASK_ environment
// variables. It provides type-safe access to the settings needed by the
// server and worker binaries while keeping configuration details separate
// from business logic.
package config
