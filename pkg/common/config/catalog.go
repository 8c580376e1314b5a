package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultHealthPath = "/health"

// Dependency is one named upstream service probed by the health cycle.
type Dependency struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	URL         string `yaml:"url" json:"url"`
	HealthPath  string `yaml:"health_path" json:"health_path"`
}

// HealthURL is the full probe target for the dependency.
func (d Dependency) HealthURL() string {
	path := d.HealthPath
	if path == "" {
		path = defaultHealthPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(d.URL, "/") + path
}

type Catalog struct {
	Dependencies []Dependency `yaml:"dependencies" json:"dependencies"`
}

// DisplayName returns the configured label for name, or name itself.
func (c Catalog) DisplayName(name string) string {
	for _, d := range c.Dependencies {
		if d.Name == name && d.DisplayName != "" {
			return d.DisplayName
		}
	}
	return name
}

func (c Catalog) validate() error {
	if len(c.Dependencies) == 0 {
		return errors.New("dependency catalog empty")
	}
	seen := make(map[string]struct{}, len(c.Dependencies))
	for i, d := range c.Dependencies {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("dependency %d: name required", i)
		}
		if strings.TrimSpace(d.URL) == "" {
			return fmt.Errorf("dependency %q: url required", d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("dependency %q declared twice", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

// LoadCatalog reads the dependency catalog from path. An empty path yields
// the built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Catalog{}, fmt.Errorf("read dependency catalog: %w", err)
	}
	return ParseCatalog(content)
}

func ParseCatalog(content []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse dependency catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// DefaultCatalog lists the MCP services behind the planning backend. URLs
// can be overridden per service through the environment.
func DefaultCatalog() Catalog {
	return Catalog{Dependencies: []Dependency{
		{Name: "data_ingestor", DisplayName: "Data Ingestor", URL: getEnv("DATA_INGESTOR_URL", "http://mcp_dataingestor:8240")},
		{Name: "ehr_connector", DisplayName: "EHR Connector", URL: getEnv("EHR_CONNECTOR_URL", "http://mcp_ehrconnector:8240")},
		{Name: "claims_parser", DisplayName: "Claims Parser", URL: getEnv("CLAIMS_PARSER_URL", "http://mcp_claimsparser:8240")},
		{Name: "feasibility_predictor", DisplayName: "Site Feasibility", URL: getEnv("FEASIBILITY_URL", "http://mcp_feasibility:8240")},
		{Name: "diversity_mapper", DisplayName: "Diversity Mapper", URL: getEnv("DIVERSITY_URL", "http://mcp_diversity:8240")},
		{Name: "protocol_scorer", DisplayName: "Protocol Scorer", URL: getEnv("PROTOCOL_URL", "http://mcp_protocolscorer:8240")},
		{Name: "soa_comparator", DisplayName: "SoA Comparator", URL: getEnv("SOA_URL", "http://mcp_soacomparator:8240")},
	}}
}
