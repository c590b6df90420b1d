package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"qualityline/internal/catalog"
	"qualityline/internal/domain"
)

// Config models qualityline.yml.
type Config struct {
	Organization struct {
		Name     string `yaml:"name"`
		Standard string `yaml:"standard"`
	} `yaml:"organization"`
	Codes struct {
		ProcessPrefix  string `yaml:"process_prefix"`
		DocumentPrefix string `yaml:"document_prefix"`
		Width          int    `yaml:"width"`
	} `yaml:"codes"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Seed Seed `yaml:"seed"`
}

// Seed describes records loaded into a fresh session. Entries reference
// processes by their seed key since ids are assigned at load time.
type Seed struct {
	Processes   []SeedProcess    `yaml:"processes"`
	Issues      []SeedIssue      `yaml:"issues"`
	Actions     []SeedAction     `yaml:"actions"`
	Documents   []SeedDocument   `yaml:"documents"`
	Attachments []SeedAttachment `yaml:"attachments"`
}

type SeedProcess struct {
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Purpose   string   `yaml:"purpose"`
	Inputs    []string `yaml:"inputs"`
	Outputs   []string `yaml:"outputs"`
	PilotName string   `yaml:"pilot_name"`
	Status    string   `yaml:"status"`
}

type SeedIssue struct {
	Process     string `yaml:"process"`
	Quadrant    string `yaml:"quadrant"`
	Description string `yaml:"description"`
	Origin      string `yaml:"origin"`
	Severity    *int   `yaml:"severity"`
	Probability *int   `yaml:"probability"`
}

type SeedAction struct {
	Process         string `yaml:"process"`
	Title           string `yaml:"title"`
	Description     string `yaml:"description"`
	ResponsibleName string `yaml:"responsible_name"`
	Status          string `yaml:"status"`
	DueDate         string `yaml:"due_date"`
}

type SeedDocument struct {
	Title       string   `yaml:"title"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Processes   []string `yaml:"processes"`
	Clauses     []string `yaml:"clauses"`
	Status      string   `yaml:"status"`
}

type SeedAttachment struct {
	Process  string `yaml:"process"`
	Function string `yaml:"function"`
	Status   string `yaml:"status"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ql config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Organization.Name == "" {
		return fmt.Errorf("config.organization.name is required")
	}
	if c.Organization.Standard != domain.StandardISO9001 {
		return fmt.Errorf("config.organization.standard must be '%s'", domain.StandardISO9001)
	}
	if c.Codes.Width < 0 || c.Codes.Width > 8 {
		return fmt.Errorf("config.codes.width must be between 0 and 8")
	}
	return c.Seed.validate()
}

func (s Seed) validate() error {
	keys := map[string]bool{}
	for i, p := range s.Processes {
		if p.Key == "" {
			return fmt.Errorf("seed.processes[%d].key is required", i)
		}
		if keys[p.Key] {
			return fmt.Errorf("seed process key %s is duplicated", p.Key)
		}
		keys[p.Key] = true
		if !oneOf(p.Type, domain.ProcessManagement, domain.ProcessOperational, domain.ProcessSupport) {
			return fmt.Errorf("seed process %s has invalid type %q", p.Key, p.Type)
		}
		if p.Status != "" && !oneOf(p.Status, domain.StatusDraft, domain.StatusActive, domain.StatusArchived) {
			return fmt.Errorf("seed process %s has invalid status %q", p.Key, p.Status)
		}
	}
	for i, is := range s.Issues {
		if !keys[is.Process] {
			return fmt.Errorf("seed.issues[%d] references unknown process %s", i, is.Process)
		}
		if !oneOf(is.Quadrant, domain.QuadrantStrength, domain.QuadrantWeakness, domain.QuadrantOpportunity, domain.QuadrantThreat) {
			return fmt.Errorf("seed.issues[%d] has invalid quadrant %q", i, is.Quadrant)
		}
		if !validScore(is.Severity) || !validScore(is.Probability) {
			return fmt.Errorf("seed.issues[%d] scores must be between 1 and 5", i)
		}
	}
	for i, a := range s.Actions {
		if !keys[a.Process] {
			return fmt.Errorf("seed.actions[%d] references unknown process %s", i, a.Process)
		}
		if a.Status != "" && !oneOf(a.Status, domain.ActionPlanned, domain.ActionInProgress, domain.ActionCompleted, domain.ActionCancelled) {
			return fmt.Errorf("seed.actions[%d] has invalid status %q", i, a.Status)
		}
	}
	for i, d := range s.Documents {
		for _, key := range d.Processes {
			if !keys[key] {
				return fmt.Errorf("seed.documents[%d] references unknown process %s", i, key)
			}
		}
	}
	cat := catalog.Default()
	for i, at := range s.Attachments {
		if !keys[at.Process] {
			return fmt.Errorf("seed.attachments[%d] references unknown process %s", i, at.Process)
		}
		if _, ok := cat.FunctionByID(at.Function); !ok {
			return fmt.Errorf("seed.attachments[%d] references unknown function %s", i, at.Function)
		}
		if at.Status != "" && !oneOf(at.Status, domain.InstancePending, domain.InstanceActive, domain.InstanceCompleted) {
			return fmt.Errorf("seed.attachments[%d] has invalid status %q", i, at.Status)
		}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func validScore(v *int) bool {
	return v == nil || (*v >= 1 && *v <= 5)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "qualityline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgName string) string {
	return fmt.Sprintf(defaultTemplate, orgName)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for an organization.
func Default(orgName string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, orgName))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing
// sections fall back to the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
	cfg.Organization.Name = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `organization:
  name: %q
  standard: ISO_9001

codes:
  process_prefix: PRC
  document_prefix: DOC
  width: 3

server:
  addr: 127.0.0.1:8080
  base_path: /v0

seed:
  processes: []
  issues: []
  actions: []
  documents: []
  attachments: []
`
