package pdm

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fieldworks/cropbed-control/pkg/config"
)

// FunctionConfig mirrors the ix-3212-style output function configuration
// for one channel: load profile, loss-of-communication behaviour, soft
// start, local source control and power-on reset. The exact bit layout is
// PDM-driver internals and out of scope here; this carries only the fields
// a config file round-trips.
type FunctionConfig struct {
	LoadProfile          string  `yaml:"load_profile"`
	LossOfCommunication  string  `yaml:"loss_of_communication"`
	SoftStartStepSize    float64 `yaml:"soft_start_step_size"`
	LocalSourceControl   string  `yaml:"local_source_control"`
	PowerOnResetEnable   bool    `yaml:"power_on_reset_enable"`
	PowerOnResetDuty     float64 `yaml:"power_on_reset_duty"`
}

// ChannelConfig mirrors the ix-3212-style per-channel configuration:
// high/low side, feedback type, current limit, automatic reset.
type ChannelConfig struct {
	LoadControl    string  `yaml:"load_control"`
	FeedbackType   string  `yaml:"feedback_type"`
	CurrentLimit   float64 `yaml:"current_limit"`
	AutomaticReset bool    `yaml:"automatic_reset"`
}

// Config is the on-disk shape of one PDM's configuration file.
type Config struct {
	Address              uint8                     `yaml:"address"`
	BedLocationID         uint8                     `yaml:"bed_location_id"`
	OutputFunctionConfig map[uint8]FunctionConfig `yaml:"output_function_config"`
	OutputChannelsConfig map[uint8]ChannelConfig  `yaml:"output_channels_config"`
}

// orderedFunctionConfig and orderedChannelsConfig build an ascending-key
// ordered yaml.Node for their map: yaml.v3 does not sort map keys on its
// own, so config tables are walked in channel order before being emitted,
// keeping on-disk files reproducible.
func orderedFunctionConfig(m map[uint8]FunctionConfig) yaml.Node {
	keys := sortedKeys(m)
	node := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		var keyNode, valNode yaml.Node
		_ = keyNode.Encode(k)
		_ = valNode.Encode(m[k])
		node.Content = append(node.Content, &keyNode, &valNode)
	}
	return node
}

func orderedChannelsConfig(m map[uint8]ChannelConfig) yaml.Node {
	keys := sortedKeys(m)
	node := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		var keyNode, valNode yaml.Node
		_ = keyNode.Encode(k)
		_ = valNode.Encode(m[k])
		node.Content = append(node.Content, &keyNode, &valNode)
	}
	return node
}

func sortedKeys[T any](m map[uint8]T) []uint8 {
	keys := make([]uint8, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// MarshalYAML implements ascending-key-ordered serialisation of the
// channel tables, the Go equivalent of the original `ordered_u8_map`
// serde helper.
func (c Config) MarshalYAML() (interface{}, error) {
	root := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	addKV := func(key string, value interface{}) {
		var keyNode yaml.Node
		_ = keyNode.Encode(key)
		var valNode yaml.Node
		_ = valNode.Encode(value)
		root.Content = append(root.Content, &keyNode, &valNode)
	}
	addKV("address", c.Address)
	addKV("bed_location_id", c.BedLocationID)

	funcNode := orderedFunctionConfig(c.OutputFunctionConfig)
	var funcKey yaml.Node
	_ = funcKey.Encode("output_function_config")
	root.Content = append(root.Content, &funcKey, &funcNode)

	chanNode := orderedChannelsConfig(c.OutputChannelsConfig)
	var chanKey yaml.Node
	_ = chanKey.Encode("output_channels_config")
	root.Content = append(root.Content, &chanKey, &chanNode)

	return &root, nil
}

// NewConfig returns an empty PDM config for the given bus address and bed
// location, with no channels configured.
func NewConfig(address, bedLocationID uint8) *Config {
	return &Config{
		Address:              address,
		BedLocationID:         bedLocationID,
		OutputFunctionConfig: make(map[uint8]FunctionConfig),
		OutputChannelsConfig: make(map[uint8]ChannelConfig),
	}
}

// LoadConfig reads a PDM configuration file from disk. Any failure -
// missing file, malformed YAML - is fatal at startup per the error
// handling design (configuration fatal).
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}
