package drift

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the declarative deployment config in the project root.
	ConfigFileName = "drift.yml"
	// ManifestFileName is the project manifest whose [tool.drift] table may
	// hold the same settings.
	ManifestFileName = "project.toml"
	// DefaultEnvFile is the env file consulted when none is configured.
	DefaultEnvFile = ".env"

	manifestTable = "drift"
)

// VMTypes is the closed set of VM size tokens the provider accepts.
var VMTypes = []string{
	"c1m.5",
	"c1m1",
	"c1m2",
	"c2m1",
	"c2m4",
	"c4m4",
	"c4m8",
	"pc1m2",
	"pc2m4",
	"pc2m8",
	"pc4m8",
}

// Regions is the closed set of region codes the provider deploys to.
var Regions = []string{
	"ams", "arn", "atl", "bog", "bom", "bos", "cdg", "den", "dfw",
	"ewr", "eze", "fra", "gdl", "gig", "gru", "hkg", "iad", "jnb",
	"lax", "lhr", "mad", "mia", "nrt", "ord", "otp", "phx", "qro",
	"scl", "sea", "sin", "sjc", "syd", "waw", "yul", "yyz",
}

// Config holds the deployment settings for an app. Instances are immutable
// by convention; derive changed copies with WithOverrides.
type Config struct {
	// Name is the app name
	Name string
	// Description is the app description
	Description string
	// VMType is the VM size token to allocate, one of VMTypes
	VMType string
	// Regions maps region codes to instance counts
	Regions map[string]int
	// Hostname is the frontend hostname to request
	Hostname string
	// EnvFile is the path to an env file of deployment secrets
	EnvFile string
	// Project is the project identifier to deploy under
	Project string
	// Packages lists extra system packages to install
	Packages []string
	// AppID is an explicit app identifier
	AppID string
	// Strategy is the rollout strategy name
	Strategy string
	// IncludeDB controls whether the export bundles the local database
	IncludeDB bool

	// originating file, if any; excluded from validation
	path string
}

type fieldSpec struct {
	name string
	typ  FieldType
}

// configSchema declares every public field and its type. Construction
// validates each assembled field value against this table.
var configSchema = []fieldSpec{
	{"name", Optional(TypeString)},
	{"description", Optional(TypeString)},
	{"vmtype", Optional(OneOf(VMTypes...))},
	{"regions", Optional(MapOf(OneOf(Regions...), TypeInt))},
	{"hostname", Optional(TypeString)},
	{"envfile", TypeString},
	{"project", Optional(TypeString)},
	{"packages", ListOf(TypeString)},
	{"appid", Optional(TypeString)},
	{"strategy", Optional(TypeString)},
	{"include_db", TypeBool},
}

// DefaultConfig returns a Config with every field at its documented default.
func DefaultConfig() Config {
	c, err := NewConfig(nil)

	if err != nil {
		panic(err) // This shouldn't happen, the defaults are statically valid
	}

	return c
}

// NewConfig builds a Config from a raw field map, as decoded from a config
// document. Fields not present keep their defaults. Every field of the
// assembled set is validated against its declared type; any mismatch returns
// an *InvalidFieldValueError naming the field.
func NewConfig(fields map[string]any) (Config, error) {
	return newConfig(fields, "")
}

func newConfig(fields map[string]any, path string) (Config, error) {
	assembled := map[string]any{
		"envfile":    DefaultEnvFile,
		"packages":   []string{},
		"include_db": false,
	}

	for k, v := range fields {
		assembled[k] = v
	}

	c := Config{path: path}

	for _, spec := range configSchema {
		value := assembled[spec.name]

		if err := CheckField(spec.name, value, spec.typ); err != nil {
			var ive *InvalidFieldValueError

			if path != "" && errors.As(err, &ive) {
				ive.File = filepath.Base(path)
			}

			return Config{}, err
		}

		c.assign(spec.name, value)
	}

	return c, nil
}

// assign stores a validated raw value into the matching typed field.
func (c *Config) assign(name string, value any) {
	if value == nil {
		return
	}

	switch name {
	case "name":
		c.Name = value.(string)
	case "description":
		c.Description = value.(string)
	case "vmtype":
		c.VMType = value.(string)
	case "regions":
		c.Regions = toRegionMap(value)
	case "hostname":
		c.Hostname = value.(string)
	case "envfile":
		c.EnvFile = value.(string)
	case "project":
		c.Project = value.(string)
	case "packages":
		c.Packages = toStringSlice(value)
	case "appid":
		c.AppID = value.(string)
	case "strategy":
		c.Strategy = value.(string)
	case "include_db":
		c.IncludeDB = value.(bool)
	}
}

// fieldMap is the inverse of assign: the raw field map a fresh construction
// would need to reproduce this Config. Unset optional fields are omitted so
// they stay subject to defaulting.
func (c Config) fieldMap() map[string]any {
	fields := map[string]any{
		"envfile":    c.EnvFile,
		"include_db": c.IncludeDB,
	}

	for k, v := range map[string]string{
		"name":        c.Name,
		"description": c.Description,
		"vmtype":      c.VMType,
		"hostname":    c.Hostname,
		"project":     c.Project,
		"appid":       c.AppID,
		"strategy":    c.Strategy,
	} {
		if v != "" {
			fields[k] = v
		}
	}

	if c.Regions != nil {
		fields["regions"] = c.Regions
	}

	if len(c.Packages) > 0 {
		fields["packages"] = c.Packages
	}

	return fields
}

// WithOverrides returns a new Config with the named fields replaced.
// Unspecified fields retain their values. The result is re-validated as a
// fresh construction, so an invalid override fails here even if the base
// Config was valid.
func (c Config) WithOverrides(overrides map[string]any) (Config, error) {
	fields := c.fieldMap()

	for k, v := range overrides {
		fields[k] = v
	}

	return newConfig(fields, c.path)
}

// Exists reports whether the Config was loaded from a file that is still
// present on disk.
func (c Config) Exists() bool {
	if c.path == "" {
		return false
	}

	_, err := os.Stat(c.path)

	return err == nil
}

// Path returns the originating config file, or "" for a defaulted or
// override-only instance.
func (c Config) Path() string {
	return c.path
}

// LoadConfig reads the declarative YAML config at path. If profile is given
// the document is narrowed to env.<profile>, so one file can hold multiple
// named profiles. Unknown keys and explicit nulls are dropped before
// construction.
func LoadConfig(path string, profile string) (Config, error) {
	raw, err := os.ReadFile(path)

	if os.IsNotExist(err) {
		return Config{}, &ConfigError{Path: path, Msg: errConfigNotFound}
	}

	if err != nil {
		return Config{}, &ConfigError{Path: path, Msg: err.Error()}
	}

	var doc map[string]any

	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, &ConfigError{Path: path, Msg: fmt.Sprintf("parsing YAML: %v", err)}
	}

	if profile != "" {
		doc = profileSection(doc, profile)
	}

	return newConfig(filterFields(doc), path)
}

// LoadManifest reads deployment settings from the [tool.drift] table of a
// TOML project manifest. A manifest without that table is a format error,
// distinct from the file being absent.
func LoadManifest(path string, profile string) (Config, error) {
	raw, err := os.ReadFile(path)

	if os.IsNotExist(err) {
		return Config{}, &ConfigError{Path: path, Msg: errConfigNotFound}
	}

	if err != nil {
		return Config{}, &ConfigError{Path: path, Msg: err.Error()}
	}

	var doc map[string]any

	if err := toml.Unmarshal(raw, &doc); err != nil {
		return Config{}, &ConfigError{Path: path, Msg: fmt.Sprintf("parsing TOML: %v", err)}
	}

	tools, ok := doc["tool"].(map[string]any)

	if !ok {
		return Config{}, &ConfigError{Path: path, Msg: "expected a [tool] table"}
	}

	section, ok := tools[manifestTable].(map[string]any)

	if !ok {
		return Config{}, &ConfigError{Path: path, Msg: fmt.Sprintf("expected a [tool.%s] table", manifestTable)}
	}

	if profile != "" {
		section = profileSection(section, profile)
	}

	return newConfig(filterFields(section), path)
}

// LoadAnyOrDefault tries the declarative config, then the manifest, then
// falls back to pure defaults. Load failures are swallowed; validation
// failures always propagate.
func LoadAnyOrDefault(dir string, profile string) (Config, error) {
	c, err := LoadConfig(filepath.Join(dir, ConfigFileName), profile)

	if err == nil {
		return c, nil
	}

	var cfgErr *ConfigError

	if !errors.As(err, &cfgErr) {
		return Config{}, err
	}

	c, err = LoadManifest(filepath.Join(dir, ManifestFileName), profile)

	if err == nil {
		return c, nil
	}

	if !errors.As(err, &cfgErr) {
		return Config{}, err
	}

	return DefaultConfig(), nil
}

// profileSection narrows a decoded document to env.<profile>, defaulting to
// empty when the profile is missing.
func profileSection(doc map[string]any, profile string) map[string]any {
	envs, ok := doc["env"].(map[string]any)

	if !ok {
		return map[string]any{}
	}

	section, ok := envs[profile].(map[string]any)

	if !ok {
		return map[string]any{}
	}

	return section
}

// filterFields keeps only declared fields with non-null values. Unknown keys
// are dropped silently to stay forward compatible with newer config files;
// they are logged at debug level so typos are at least discoverable.
func filterFields(doc map[string]any) map[string]any {
	known := make(map[string]bool, len(configSchema))

	for _, spec := range configSchema {
		known[spec.name] = true
	}

	fields := map[string]any{}
	var dropped []string

	for k, v := range doc {
		if !known[k] {
			dropped = append(dropped, k)
			continue
		}

		if v == nil {
			continue
		}

		fields[k] = v
	}

	if len(dropped) > 0 {
		sort.Strings(dropped)

		log.Debug("Ignoring unknown config keys", "keys", dropped)
	}

	return fields
}

func toRegionMap(value any) map[string]int {
	regions := map[string]int{}

	switch m := value.(type) {
	case map[string]int:
		for k, v := range m {
			regions[k] = v
		}
	case map[string]any:
		for k, v := range m {
			regions[k] = toInt(v)
		}
	case map[any]any:
		for k, v := range m {
			regions[k.(string)] = toInt(v)
		}
	}

	return regions
}

func toStringSlice(value any) []string {
	if ss, ok := value.([]string); ok {
		return append([]string{}, ss...)
	}

	items := value.([]any)
	ss := make([]string, len(items))

	for i, item := range items {
		ss[i] = item.(string)
	}

	return ss
}

// toInt widens the integer representations the YAML and TOML decoders
// produce. Validation has already established the value is integral.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	}

	return 0
}
