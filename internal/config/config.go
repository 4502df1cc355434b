// Package config loads gofax's INI-style configuration file, grounded
// directly on the teacher's internal/config package: one flat Config
// struct with unexported fields and typed accessors, a section-dispatching
// line scanner, and a NewConfig constructor carrying every default.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dbehnke/gofax/internal/t30"
)

// Config holds gofax's full runtime configuration.
type Config struct {
	filename string

	// [Terminal] section: local T.30 identity and capabilities.
	ident             string
	pollable          bool
	ecmEnabled        bool
	fineResolution    bool
	superFineAllowed  bool
	compression2D     bool
	compressionT6     bool
	supportV17        bool
	supportV29        bool
	supportV27ter     bool

	// [T38] section: FAX-over-IP transport.
	t38ListenAddress string
	t38ListenPort    uint32
	t38RemoteAddress string
	t38RemotePort    uint32
	t38MaxDatagram   uint32
	t38Redundancy    uint32

	// [Database] section: call-log persistence.
	databaseEnabled bool
	databasePath    string

	// [Metrics] section.
	metricsEnabled bool
	metricsAddress string

	// [Log] section.
	logLevel string
	logPath  string
}

// NewConfig returns a Config with every field defaulted, ready for Load to
// override from a file.
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,

		ident:            "GOFAX",
		ecmEnabled:       true,
		fineResolution:   true,
		compression2D:    true,
		supportV17:       true,
		supportV29:       true,
		supportV27ter:    true,

		t38ListenPort:  6004,
		t38RemotePort:  6004,
		t38MaxDatagram: 400,
		t38Redundancy:  0,

		databaseEnabled: false,
		databasePath:    "data/calllog.db",

		metricsEnabled: false,
		metricsAddress: "0.0.0.0:9090",

		logLevel: "info",
	}
}

// Load reads and parses the configuration file named at construction.
func (c *Config) Load() error {
	file, err := os.Open(c.filename)
	if err != nil {
		return fmt.Errorf("config: failed to open %s: %w", c.filename, err)
	}
	defer file.Close()
	return c.parseINI(bufio.NewScanner(file))
}

// LoadFromString parses configuration from an in-memory string, used by
// tests and embedded default configs.
func (c *Config) LoadFromString(data string) error {
	return c.parseINI(bufio.NewScanner(strings.NewReader(data)))
}

func (c *Config) parseINI(scanner *bufio.Scanner) error {
	var section string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch section {
		case "Terminal":
			c.parseTerminalSection(key, value)
		case "T38":
			c.parseT38Section(key, value)
		case "Database":
			c.parseDatabaseSection(key, value)
		case "Metrics":
			c.parseMetricsSection(key, value)
		case "Log":
			c.parseLogSection(key, value)
		}
	}
	return scanner.Err()
}

func parseBool(value string) bool {
	v, _ := strconv.ParseBool(value)
	return v
}

func parseUint32(value string) uint32 {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func (c *Config) parseTerminalSection(key, value string) {
	switch key {
	case "Ident":
		c.ident = value
	case "Pollable":
		c.pollable = parseBool(value)
	case "ECMEnabled":
		c.ecmEnabled = parseBool(value)
	case "FineResolution":
		c.fineResolution = parseBool(value)
	case "SuperFineAllowed":
		c.superFineAllowed = parseBool(value)
	case "Compression2D":
		c.compression2D = parseBool(value)
	case "CompressionT6":
		c.compressionT6 = parseBool(value)
	case "SupportV17":
		c.supportV17 = parseBool(value)
	case "SupportV29":
		c.supportV29 = parseBool(value)
	case "SupportV27ter":
		c.supportV27ter = parseBool(value)
	}
}

func (c *Config) parseT38Section(key, value string) {
	switch key {
	case "ListenAddress":
		c.t38ListenAddress = value
	case "ListenPort":
		c.t38ListenPort = parseUint32(value)
	case "RemoteAddress":
		c.t38RemoteAddress = value
	case "RemotePort":
		c.t38RemotePort = parseUint32(value)
	case "MaxDatagram":
		c.t38MaxDatagram = parseUint32(value)
	case "Redundancy":
		c.t38Redundancy = parseUint32(value)
	}
}

func (c *Config) parseDatabaseSection(key, value string) {
	switch key {
	case "Enabled":
		c.databaseEnabled = parseBool(value)
	case "Path":
		c.databasePath = value
	}
}

func (c *Config) parseMetricsSection(key, value string) {
	switch key {
	case "Enabled":
		c.metricsEnabled = parseBool(value)
	case "Address":
		c.metricsAddress = value
	}
}

func (c *Config) parseLogSection(key, value string) {
	switch key {
	case "Level":
		c.logLevel = value
	case "Path":
		c.logPath = value
	}
}

// Accessors. Kept as simple getters, matching the teacher's own
// unexported-field-plus-accessor convention rather than exporting fields
// directly.

func (c *Config) Ident() string            { return c.ident }
func (c *Config) Pollable() bool           { return c.pollable }
func (c *Config) ECMEnabled() bool         { return c.ecmEnabled }
func (c *Config) FineResolution() bool     { return c.fineResolution }
func (c *Config) SuperFineAllowed() bool   { return c.superFineAllowed }
func (c *Config) Compression2D() bool      { return c.compression2D }
func (c *Config) CompressionT6() bool      { return c.compressionT6 }
func (c *Config) SupportV17() bool         { return c.supportV17 }
func (c *Config) SupportV29() bool         { return c.supportV29 }
func (c *Config) SupportV27ter() bool      { return c.supportV27ter }

func (c *Config) T38ListenAddress() string { return c.t38ListenAddress }
func (c *Config) T38ListenPort() uint32    { return c.t38ListenPort }
func (c *Config) T38RemoteAddress() string { return c.t38RemoteAddress }
func (c *Config) T38RemotePort() uint32    { return c.t38RemotePort }
func (c *Config) T38MaxDatagram() uint32   { return c.t38MaxDatagram }
func (c *Config) T38Redundancy() uint32    { return c.t38Redundancy }

func (c *Config) DatabaseEnabled() bool { return c.databaseEnabled }
func (c *Config) DatabasePath() string  { return c.databasePath }

func (c *Config) MetricsEnabled() bool   { return c.metricsEnabled }
func (c *Config) MetricsAddress() string { return c.metricsAddress }

func (c *Config) LogLevel() string { return c.logLevel }
func (c *Config) LogPath() string  { return c.logPath }

// ToLocalDIS builds the local capability set BuildDCS and the answering
// side's DIS construction need, from this configuration.
func (c *Config) ToLocalDIS() t30.DIS {
	return t30.DIS{
		ReadyToReceive:  true,
		ReadyToTransmit: c.pollable,
		SupportV27ter:   c.supportV27ter,
		SupportV29:      c.supportV29,
		SupportV17:      c.supportV17,
		FineResolution:  c.fineResolution,
		SuperFineResolution: c.superFineAllowed,
		Compression2D:   c.compression2D,
		CompressionT6:   c.compressionT6,
		ECM:             c.ecmEnabled,
		Width255mm:      true,
		Width303mm:      true,
		LengthUnlimited: true,
	}
}
