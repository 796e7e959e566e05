// Package config is the gateway's configuration layer: CLI flags and an
// optional JSON overlay, fatal-at-startup validation, assembled into a
// single explicit record passed to every constructor rather than read back
// out of globals.
//
// Grounded on ClusterCockpit-cc-backend's cmd/cc-backend/main.go: a
// defaulted struct, stdlib flag.FlagSet for CLI parsing, and an optional
// JSON config file overlaid on top (json.Decoder.DisallowUnknownFields).
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config is the full set of options the gateway accepts, covering spec.md
// §6's CLI surface plus the ambient-ops flags this expansion adds.
type Config struct {
	// BLOBFolder is the positional argument: where BLOB payloads are
	// written by internal/blobsink.
	BLOBFolder string `json:"blob-folder"`

	// Port/Host are accepted and threaded through to the external
	// web-GUI contract; this repo does not serve them itself.
	Port string `json:"port"`
	Host string `json:"host"`

	// IPort/IHost is the upstream INDI server/driver TCP endpoint.
	IPort string `json:"iport"`
	IHost string `json:"ihost"`

	// RPort/RHost is the Redis endpoint.
	RPort string `json:"rport"`
	RHost string `json:"rhost"`

	// Prefix namespaces every store key (store.Keys.Prefix).
	Prefix string `json:"prefix"`

	// ToIndiPub/FromIndiPub name the pub/sub channels (defaults
	// "to-indi"/"from-indi").
	ToIndiPub   string `json:"toindipub"`
	FromIndiPub string `json:"fromindipub"`

	// ClientOnly skips connecting to an upstream INDI server/driver;
	// only the Redis/MQTT sides of the bridge run.
	ClientOnly bool `json:"clientonly"`

	// MetricsAddr, if non-empty, serves /metrics and /healthz here.
	MetricsAddr string `json:"metricsaddr"`

	// LogLevel is one of the rickbassham/logging level names.
	LogLevel string `json:"loglevel"`

	// MQTT broker configuration. spec.md §6 names four caller-configurable
	// topics; indimqtt.py/m_to_r.py/m_to_p.py only exercise the to-indi/
	// from-indi pair directly (snoop is accepted config surface, wired
	// into the INDI<->MQTT/drivers<->MQTT passthrough pairing rather than
	// a topology of its own - see runUpstreamTopology).
	MQTTBroker       string `json:"mqttbroker"`
	MQTTToIndi       string `json:"mqtttoindi"`
	MQTTFromIndi     string `json:"mqttfromindi"`
	MQTTSnoopControl string `json:"mqttsnoopctrl"`
	MQTTSnoopData    string `json:"mqttsnoopdata"`
	MQTTClientID     string `json:"mqttclientid"`

	// Drivers are paths to driver executables to spawn and bridge to
	// the store (the drivers<->Redis / drivers<->MQTT topology).
	Drivers []string `json:"drivers"`

	// ListenPort is the port for the listening-port server (the
	// MQTT<->listening-port topology).
	ListenPort string `json:"listenport"`
}

// Defaults returns the baseline Config, matching spec.md §6's channel name
// defaults and cc-backend's "ship a sane default, let flags/file override
// it" convention.
func Defaults() Config {
	return Config{
		Port:        "8080",
		Host:        "",
		IPort:       "7624",
		IHost:       "localhost",
		RPort:       "6379",
		RHost:       "localhost",
		Prefix:      "",
		ToIndiPub:   "to-indi",
		FromIndiPub: "from-indi",
		LogLevel:    "info",

		MQTTToIndi:       "to_indi_topic",
		MQTTFromIndi:     "from_indi_topic",
		MQTTSnoopControl: "snoop_control_topic",
		MQTTSnoopData:    "snoop_data_topic",
		MQTTClientID:     "indi-gateway",
	}
}

// repeatedFlag implements flag.Value to collect a repeatable --driver flag
// into a []string, the same pattern multi-value CLI flags use throughout
// the Go ecosystem since flag has no native slice type.
type repeatedFlag struct {
	values *[]string
}

func (r repeatedFlag) String() string {
	if r.values == nil {
		return ""
	}
	return fmt.Sprint(*r.values)
}

func (r repeatedFlag) Set(v string) error {
	*r.values = append(*r.values, v)
	return nil
}

// Parse builds a Config from args (typically os.Args[1:]): it starts from
// Defaults, applies an optional JSON file named by --config, then applies
// flags, since flags are meant to override a config file per cc-backend's
// convention. The positional blob_folder argument is required.
func Parse(args []string) (Config, error) {
	cfg := Defaults()

	if path, err := peekConfigFile(args); err != nil {
		return Config{}, err
	} else if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	fs := flag.NewFlagSet("indi-gateway", flag.ContinueOnError)

	var configFile string
	fs.StringVar(&configFile, "config", "", "Path to a JSON config file overlaying the defaults")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Web-GUI port (accepted, not served by this program)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Web-GUI host (accepted, not served by this program)")
	fs.StringVar(&cfg.IPort, "iport", cfg.IPort, "INDI server/driver port")
	fs.StringVar(&cfg.IHost, "ihost", cfg.IHost, "INDI server/driver host")
	fs.StringVar(&cfg.RPort, "rport", cfg.RPort, "Redis port")
	fs.StringVar(&cfg.RHost, "rhost", cfg.RHost, "Redis host")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Store key namespace prefix")
	fs.StringVar(&cfg.ToIndiPub, "toindipub", cfg.ToIndiPub, "Pub/sub channel for inbound commands")
	fs.StringVar(&cfg.FromIndiPub, "fromindipub", cfg.FromIndiPub, "Pub/sub channel for ingest alerts")
	fs.BoolVar(&cfg.ClientOnly, "clientonly", cfg.ClientOnly, "Skip connecting to an upstream INDI server/driver")
	fs.StringVar(&cfg.MetricsAddr, "metricsaddr", cfg.MetricsAddr, "Address to serve /metrics and /healthz on (empty disables)")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.MQTTBroker, "mqttbroker", cfg.MQTTBroker, "MQTT broker URL")
	fs.StringVar(&cfg.MQTTToIndi, "mqtttoindi", cfg.MQTTToIndi, "MQTT inbound-command topic")
	fs.StringVar(&cfg.MQTTFromIndi, "mqttfromindi", cfg.MQTTFromIndi, "MQTT ingest-alert topic")
	fs.StringVar(&cfg.MQTTSnoopControl, "mqttsnoopctrl", cfg.MQTTSnoopControl, "MQTT snoop-control topic")
	fs.StringVar(&cfg.MQTTSnoopData, "mqttsnoopdata", cfg.MQTTSnoopData, "MQTT snoop-data topic")
	fs.StringVar(&cfg.MQTTClientID, "mqttclientid", cfg.MQTTClientID, "MQTT client id")
	fs.Var(repeatedFlag{&cfg.Drivers}, "driver", "Path to a driver executable to spawn (repeatable)")
	fs.StringVar(&cfg.ListenPort, "listenport", cfg.ListenPort, "Port for the listening-port server")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if fs.NArg() < 1 {
		return Config{}, fmt.Errorf("config: missing required blob_folder argument")
	}
	cfg.BLOBFolder = fs.Arg(0)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// peekConfigFile scans args directly for "--config"/"-config" (as "-flag
// value" or "-flag=value") ahead of building the real flag.FlagSet, so the
// JSON file's values can seed that FlagSet's defaults - flags must still
// override the file, and flag.FlagSet has no way to re-derive defaults
// after construction.
func peekConfigFile(args []string) (string, error) {
	for i, arg := range args {
		name, value, hasEq := cutFlag(arg)
		if name != "config" {
			continue
		}
		if hasEq {
			return value, nil
		}
		if i+1 >= len(args) {
			return "", fmt.Errorf("config: -config requires a value")
		}
		return args[i+1], nil
	}
	return "", nil
}

// cutFlag splits a single argv entry shaped like "-name", "--name", or
// "--name=value" into its flag name and, if present, its inline value.
func cutFlag(arg string) (name, value string, hasValue bool) {
	arg = strings.TrimLeft(arg, "-")
	name, value, hasValue = strings.Cut(arg, "=")
	return name, value, hasValue
}

func overlayFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// Validate returns a human-readable error for any configuration state that
// should be fatal at startup (spec §7): an empty blob folder, or MQTT
// topics/broker in an inconsistent state.
func (c Config) Validate() error {
	if c.BLOBFolder == "" {
		return fmt.Errorf("config: blob_folder must not be empty")
	}
	if c.ToIndiPub == "" || c.FromIndiPub == "" {
		return fmt.Errorf("config: toindipub and fromindipub must not be empty")
	}
	if c.MQTTBroker != "" {
		if c.MQTTToIndi == "" || c.MQTTFromIndi == "" || c.MQTTSnoopControl == "" || c.MQTTSnoopData == "" {
			return fmt.Errorf("config: all four MQTT topics are required when --mqttbroker is set")
		}
	}
	return nil
}
