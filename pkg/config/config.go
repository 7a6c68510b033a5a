package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultPollInterval is the delay between two job polls
	DefaultPollInterval = 10 * time.Second
	// DefaultPollTimeout bounds a single wait on a job
	DefaultPollTimeout = 30 * time.Minute
)

var validate = validator.New()

// Config is the whole harness configuration. It is loaded once and passed
// down to every scenario. Environment overrides are named
// JOBHARNESS_<SECTION>_<FIELD>, e.g. JOBHARNESS_POLL_INTERVAL.
type Config struct {
	Drivers   DriverConfig    `yaml:"drivers" envconfig:"JOBHARNESS_DRIVER"`
	Backend   BackendConfig   `yaml:"backend" envconfig:"JOBHARNESS_BACKEND"`
	SSH       SSHConfig       `yaml:"ssh" envconfig:"JOBHARNESS_SSH"`
	Hosts     []HostConfig    `yaml:"hosts" ignored:"true" validate:"dive"`
	Poll      PollConfig      `yaml:"poll" envconfig:"JOBHARNESS_POLL"`
	Log       LogConfig       `yaml:"log" envconfig:"JOBHARNESS_LOG"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"JOBHARNESS_DB"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"JOBHARNESS_DASHBOARD"`
	TestRail  TestRailConfig  `yaml:"testrail" envconfig:"JOBHARNESS_TESTRAIL"`
	Jira      JiraConfig      `yaml:"jira" envconfig:"JOBHARNESS_JIRA"`
	Email     EmailConfig     `yaml:"email" envconfig:"JOBHARNESS_EMAIL"`
	Metrics   MetricsConfig   `yaml:"metrics" envconfig:"JOBHARNESS_METRICS"`
	Influx    InfluxConfig    `yaml:"influx" envconfig:"JOBHARNESS_INFLUX"`
	Artifacts ArtifactsConfig `yaml:"artifacts" envconfig:"JOBHARNESS_ARTIFACTS"`
	Scenario  ScenarioInputs  `yaml:"scenario" envconfig:"JOBHARNESS_SCENARIO"`
}

// DriverConfig names the registered drivers to use
type DriverConfig struct {
	Job  string `yaml:"job" validate:"required"`
	Node string `yaml:"node" validate:"required"`
}

// BackendConfig is how the job driver reaches the backend
type BackendConfig struct {
	URL      string        `yaml:"url" validate:"omitempty,url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Insecure bool          `yaml:"insecure"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SSHConfig holds the credentials used by the ssh node driver
type SSHConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	KeyPath  string `yaml:"key_path" split_words:"true"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
}

// HostConfig is one entry of the host inventory
type HostConfig struct {
	Name      string   `yaml:"name" validate:"required"`
	Addresses []string `yaml:"addresses" validate:"required,min=1"`
	Type      string   `yaml:"type" validate:"omitempty,oneof=linux windows"`
	LogDir    string   `yaml:"log_dir"`
}

// PollConfig is the default wait policy for job polling
type PollConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"`
	PhaseAttempts      int           `yaml:"phase_attempts" split_words:"true" validate:"gte=0"`
	ContainsPhaseMatch bool          `yaml:"contains_phase_match" split_words:"true"`
	Backoff            bool          `yaml:"backoff"`
	MaxInterval        time.Duration `yaml:"max_interval" split_words:"true"`
}

// LogConfig controls the harness logger
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Dir    string `yaml:"dir"`
	Colors bool   `yaml:"colors"`
}

// DatabaseConfig is the read only metadata store used by SQL probes
type DatabaseConfig struct {
	Driver       string `yaml:"driver" validate:"omitempty,oneof=mysql pgx"`
	DSN          string `yaml:"dsn" validate:"required_with=Driver"`
	MaxOpenConns int    `yaml:"max_open_conns" split_words:"true" validate:"gte=0"`
}

// DashboardConfig for the result dashboard
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"omitempty,url"`
	Branch  string `yaml:"branch"`
	User    string `yaml:"user"`
}

// TestRailConfig for pushing results to TestRail
type TestRailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" validate:"omitempty,url"`
	Username string `yaml:"username" validate:"required_if=Enabled true"`
	APIKey   string `yaml:"api_key" split_words:"true" validate:"required_if=Enabled true"`
	RunID    int    `yaml:"run_id" split_words:"true" validate:"gte=0"`
	// Milestone groups the runs, created when missing
	Milestone string `yaml:"milestone"`
	// RunName defaults to the CI job name
	RunName string `yaml:"run_name" split_words:"true"`
}

// JiraConfig for filing defects when a scenario fails
type JiraConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url" validate:"omitempty,url"`
	Username  string `yaml:"username"`
	Token     string `yaml:"token"`
	Project   string `yaml:"project" validate:"required_if=Enabled true"`
	IssueType string `yaml:"issue_type" split_words:"true"`
}

// EmailConfig for the run summary mail
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host" validate:"required_if=Enabled true"`
	Port     int      `yaml:"port" validate:"gte=0,lte=65535"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" validate:"omitempty,email"`
	To       []string `yaml:"to" validate:"dive,email"`
}

// MetricsConfig for the Prometheus endpoint and push gateway
type MetricsConfig struct {
	ListenAddr  string `yaml:"listen_addr" split_words:"true"`
	PushGateway string `yaml:"push_gateway" split_words:"true" validate:"omitempty,url"`
	JobName     string `yaml:"job_name" split_words:"true"`
}

// InfluxConfig for recording interruption events
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"omitempty,url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket" validate:"required_if=Enabled true"`
}

// ArtifactsConfig for bundling logs and uploading them to S3
type ArtifactsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// ScenarioInputs are the entities the built-in scenarios operate on
type ScenarioInputs struct {
	Client              string        `yaml:"client"`
	Subclient           string        `yaml:"subclient"`
	Subclients          []string      `yaml:"subclients"`
	BackupLevel         string        `yaml:"backup_level" split_words:"true"`
	TargetHost          string        `yaml:"target_host" split_words:"true"`
	ServiceName         string        `yaml:"service_name" split_words:"true"`
	ProcessName         string        `yaml:"process_name" split_words:"true"`
	LogFile             string        `yaml:"log_file" split_words:"true"`
	KillPhase           string        `yaml:"kill_phase" split_words:"true"`
	StoragePolicy       string        `yaml:"storage_policy" split_words:"true"`
	CopyName            string        `yaml:"copy_name" split_words:"true"`
	PrimaryCountQuery   string        `yaml:"primary_count_query" split_words:"true"`
	SecondaryCountQuery string        `yaml:"secondary_count_query" split_words:"true"`
	InterruptWait       time.Duration `yaml:"interrupt_wait" split_words:"true"`
}

// Default returns a configuration that runs the catalog against the
// in-process simulator
func Default() *Config {
	return &Config{
		Drivers: DriverConfig{Job: "simulator", Node: "simulator"},
		Backend: BackendConfig{Timeout: 30 * time.Second},
		SSH:     SSHConfig{User: "root", Port: 22},
		Hosts: []HostConfig{
			{Name: "media-agent-1", Addresses: []string{"127.0.0.1"}, Type: "linux", LogDir: "/var/log/backend"},
		},
		Poll: PollConfig{
			Interval:      DefaultPollInterval,
			Timeout:       DefaultPollTimeout,
			PhaseAttempts: 60,
			MaxInterval:   time.Minute,
		},
		Log:     LogConfig{Level: "info", Dir: "/tmp/jobharness"},
		Metrics: MetricsConfig{JobName: "jobharness"},
		Email:   EmailConfig{Port: 25},
		Scenario: ScenarioInputs{
			Client:      "client-1",
			Subclient:   "default",
			Subclients:  []string{"default", "sc-2"},
			BackupLevel: "Full",
			TargetHost:  "media-agent-1",
			ServiceName: "backupsvc",
			ProcessName: "backupd",
			LogFile:     "perf.log",
			KillPhase:   "Backup",
		},
	}
}

// Load reads cfgFile over the defaults, applies environment overrides and
// validates the result. An empty cfgFile skips the file.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	if cfgFile != "" {
		if err := readFile(cfg, cfgFile); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}
	if err := readEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(cfg *Config, cfgFile string) error {
	openedCfgFile, err := os.Open(cfgFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = openedCfgFile.Close()
	}()

	return yaml.NewDecoder(openedCfgFile).Decode(cfg)
}

func readEnv(cfg *Config) error {
	return envconfig.Process("", cfg)
}

// Validate checks struct tags and the poll policy
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("invalid config: poll interval must be positive, got %v", cfg.Poll.Interval)
	}
	if cfg.Poll.Timeout <= 0 {
		return fmt.Errorf("invalid config: poll timeout must be positive, got %v", cfg.Poll.Timeout)
	}
	if cfg.Poll.Backoff && cfg.Poll.MaxInterval < cfg.Poll.Interval {
		return fmt.Errorf("invalid config: max interval %v is shorter than interval %v", cfg.Poll.MaxInterval, cfg.Poll.Interval)
	}
	for section, missing := range map[string]bool{
		"dashboard": cfg.Dashboard.Enabled && cfg.Dashboard.URL == "",
		"testrail":  cfg.TestRail.Enabled && cfg.TestRail.URL == "",
		"jira":      cfg.Jira.Enabled && cfg.Jira.URL == "",
		"influx":    cfg.Influx.Enabled && cfg.Influx.URL == "",
	} {
		if missing {
			return fmt.Errorf("invalid config: %s is enabled but has no url", section)
		}
	}
	seen := map[string]bool{}
	for _, h := range cfg.Hosts {
		if seen[h.Name] {
			return fmt.Errorf("invalid config: host %s listed twice", h.Name)
		}
		seen[h.Name] = true
	}
	return nil
}

// Host returns the inventory entry called name
func (cfg *Config) Host(name string) (HostConfig, bool) {
	for _, h := range cfg.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return HostConfig{}, false
}
