package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// defaultUUID is the sample user id shipped with the tool; real deployments
// override it via the UUID environment variable.
const defaultUUID = "471a8e64-7b21-4703-b1d1-45a221098459"

// Config holds all configuration
type Config struct {
	GitHub GitHubConfig
	CSV    CSVConfig
	Sub    SubConfig
	Output OutputConfig
	Node   NodeConfig
	Prune  PruneConfig

	// RequestTimeoutSec bounds every single network request (no retries).
	RequestTimeoutSec int
}

// GitHubConfig holds the destination repository identity and credential
type GitHubConfig struct {
	Token  string
	Repo   string // "owner/name"
	Branch string
}

// CSVConfig locates the candidate-endpoint CSV
type CSVConfig struct {
	SourceDir string
	Filename  string

	// SourceURL is an optional direct HTTP(S) source. When set, the CSV is
	// fetched from this URL instead of the in-repo path.
	SourceURL string
}

// RepoPath is the CSV location inside the destination repository.
func (c CSVConfig) RepoPath() string {
	if c.SourceDir == "" {
		return c.Filename
	}
	return path.Join(c.SourceDir, c.Filename)
}

// SubConfig locates the previously published subscription
type SubConfig struct {
	// SourceURL is an optional direct HTTP(S) source for the published
	// subscription, e.g. a raw or CDN URL of the node file. When set, the
	// prior subscription is read from it instead of the contents API,
	// which keeps reads off the API quota. Uploads always go through the
	// API.
	SourceURL string
}

// OutputConfig names the published artifacts inside the repository
type OutputConfig struct {
	NodeFile string
	YAMLFile string
}

// NodeConfig holds the VLESS identity shared by generated nodes
type NodeConfig struct {
	UUID          string
	Host          string
	SNI           string
	Fingerprint   string
	Path          string
	DefaultPort   int
	ForcePort443  bool
	RemarksPrefix string
}

// PruneConfig controls dropping of aged-out nodes during merge
type PruneConfig struct {
	Enabled bool
	MaxDays int
}

// Load loads configuration from environment variables. A .env file is
// loaded first when present. When CONFIG_FILE is set it names an INI file
// whose values sit between the environment and the built-in defaults.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	if iniPath := os.Getenv("CONFIG_FILE"); iniPath != "" {
		return LoadFromINI(iniPath)
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:  getEnv("GITHUB_TOKEN", os.Getenv("GH_TOKEN")),
			Repo:   getEnv("GITHUB_REPO", "DaiZhouHui/CustomNode"),
			Branch: getEnv("GITHUB_BRANCH", "main"),
		},
		CSV: CSVConfig{
			SourceDir: getEnv("CSV_SOURCE_DIR", "f_node"),
			Filename:  getEnv("CSV_FILENAME", "results.csv"),
			SourceURL: getEnv("CSV_SOURCE_URL", ""),
		},
		Sub: SubConfig{
			SourceURL: getEnv("SUB_SOURCE_URL", ""),
		},
		Output: OutputConfig{
			NodeFile: getEnv("OUTPUT_NODE_FILE", "AutoNode"),
			YAMLFile: getEnv("OUTPUT_YAML_FILE", "AutoNode.yaml"),
		},
		Node: NodeConfig{
			UUID:          getEnv("UUID", defaultUUID),
			Host:          getEnv("HOST", "knny.dpdns.org"),
			SNI:           getEnv("SNI", "knny.dpdns.org"),
			Fingerprint:   getEnv("FINGERPRINT", "chrome"),
			Path:          getEnv("CUSTOM_PATH", "/?ed=2048"),
			DefaultPort:   getEnvInt("DEFAULT_PORT", 443),
			ForcePort443:  getEnvBool("FORCE_PORT_443", true),
			RemarksPrefix: getEnv("REMARKS_PREFIX", "香港节点-"),
		},
		Prune: PruneConfig{
			Enabled: getEnvBool("AUTO_DELETE_OLD_NODES", true),
			MaxDays: getEnvInt("MAX_DAYS_TO_KEEP", 10),
		},
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT", 30),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	owner, name, ok := strings.Cut(c.GitHub.Repo, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("GITHUB_REPO must look like owner/repo, got %q", c.GitHub.Repo)
	}
	if c.GitHub.Branch == "" {
		return fmt.Errorf("GITHUB_BRANCH must not be empty")
	}
	if c.CSV.SourceURL == "" && c.CSV.Filename == "" {
		return fmt.Errorf("CSV_FILENAME is required when CSV_SOURCE_URL is unset")
	}
	if c.Output.NodeFile == "" || c.Output.YAMLFile == "" {
		return fmt.Errorf("OUTPUT_NODE_FILE and OUTPUT_YAML_FILE must not be empty")
	}
	if _, err := uuid.Parse(c.Node.UUID); err != nil {
		return fmt.Errorf("UUID is not a valid UUID: %w", err)
	}
	if c.Node.DefaultPort < 1 || c.Node.DefaultPort > 65535 {
		return fmt.Errorf("DEFAULT_PORT out of range: %d", c.Node.DefaultPort)
	}
	if c.Prune.MaxDays < 1 {
		return fmt.Errorf("MAX_DAYS_TO_KEEP must be positive, got %d", c.Prune.MaxDays)
	}
	if c.RequestTimeoutSec < 1 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeoutSec)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		value = strings.ToLower(value)
		return value == "1" || value == "true"
	}
	return defaultValue
}

// LoadFromINI loads configuration from an INI file with environment
// variable override. Priority: ENV > INI > default.
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			value = strings.ToLower(value)
			return value == "1" || value == "true"
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:  getValue("GITHUB_TOKEN", "github", "token", os.Getenv("GH_TOKEN")),
			Repo:   getValue("GITHUB_REPO", "github", "repo", "DaiZhouHui/CustomNode"),
			Branch: getValue("GITHUB_BRANCH", "github", "branch", "main"),
		},
		CSV: CSVConfig{
			SourceDir: getValue("CSV_SOURCE_DIR", "csv", "source_dir", "f_node"),
			Filename:  getValue("CSV_FILENAME", "csv", "filename", "results.csv"),
			SourceURL: getValue("CSV_SOURCE_URL", "csv", "source_url", ""),
		},
		Sub: SubConfig{
			SourceURL: getValue("SUB_SOURCE_URL", "sub", "source_url", ""),
		},
		Output: OutputConfig{
			NodeFile: getValue("OUTPUT_NODE_FILE", "output", "node_file", "AutoNode"),
			YAMLFile: getValue("OUTPUT_YAML_FILE", "output", "yaml_file", "AutoNode.yaml"),
		},
		Node: NodeConfig{
			UUID:          getValue("UUID", "node", "uuid", defaultUUID),
			Host:          getValue("HOST", "node", "host", "knny.dpdns.org"),
			SNI:           getValue("SNI", "node", "sni", "knny.dpdns.org"),
			Fingerprint:   getValue("FINGERPRINT", "node", "fingerprint", "chrome"),
			Path:          getValue("CUSTOM_PATH", "node", "path", "/?ed=2048"),
			DefaultPort:   getValueInt("DEFAULT_PORT", "node", "default_port", 443),
			ForcePort443:  getValueBool("FORCE_PORT_443", "node", "force_port_443", true),
			RemarksPrefix: getValue("REMARKS_PREFIX", "node", "remarks_prefix", "香港节点-"),
		},
		Prune: PruneConfig{
			Enabled: getValueBool("AUTO_DELETE_OLD_NODES", "prune", "enabled", true),
			MaxDays: getValueInt("MAX_DAYS_TO_KEEP", "prune", "max_days", 10),
		},
		RequestTimeoutSec: getValueInt("REQUEST_TIMEOUT", "http", "request_timeout_sec", 30),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
