package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CredentialsFile is the on-disk credentials layout. JSON files in the same
// shape parse unchanged since YAML is a superset of JSON.
type CredentialsFile struct {
	Volcengine VolcengineSection `yaml:"volcengine"`
}

// VolcengineSection holds the knowledge base settings of a credentials file
type VolcengineSection struct {
	AccessKey           string `yaml:"ak"`
	SecretKey           string `yaml:"sk"`
	KnowledgeBaseDomain string `yaml:"knowledge_base_domain"`
	KnowledgeBaseName   string `yaml:"knowledge_base_name"`
	Project             string `yaml:"project"`
	Region              string `yaml:"region"`
	Service             string `yaml:"service"`
	// Seconds as a number, or a Go duration string
	RequestTimeout any `yaml:"request_timeout"`
}

// ReadFile parses a credentials file
func ReadFile(path string) (*CredentialsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file CredentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &file, nil
}

// ApplyFile exports the values of a credentials file as environment variables.
// Variables that already hold a value are left untouched.
func ApplyFile(path string) error {
	file, err := ReadFile(path)
	if err != nil {
		return err
	}

	timeout, err := formatTimeout(file.Volcengine.RequestTimeout)
	if err != nil {
		return fmt.Errorf("invalid request_timeout in config file %s: %w", path, err)
	}

	values := []struct {
		key   string
		value string
	}{
		{"VOLC_ACCESS_KEY", file.Volcengine.AccessKey},
		{"VOLC_SECRET_KEY", file.Volcengine.SecretKey},
		{"KNOWLEDGE_BASE_DOMAIN", file.Volcengine.KnowledgeBaseDomain},
		{"KNOWLEDGE_BASE_NAME", file.Volcengine.KnowledgeBaseName},
		{"KNOWLEDGE_BASE_PROJECT", file.Volcengine.Project},
		{"VOLC_REGION", file.Volcengine.Region},
		{"VOLC_SERVICE", file.Volcengine.Service},
		{"KNOWLEDGE_BASE_REQUEST_TIMEOUT", timeout},
	}

	for _, v := range values {
		if v.value == "" || os.Getenv(v.key) != "" {
			continue
		}
		if err := os.Setenv(v.key, v.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.key, err)
		}
	}
	return nil
}

func formatTimeout(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case int:
		return strconv.Itoa(v) + "s", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64) + "s", nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return "", nil
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v + "s", nil
		}
		return v, nil
	default:
		return "", fmt.Errorf("unsupported type %T", value)
	}
}
