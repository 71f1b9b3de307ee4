package provider

import (
	"fmt"
	"strings"
)

// Namespace selects where in a backend the pairs of one environment live.
// PathPrefix is for hierarchical stores (e.g. "/myapp/dev/"); Prefix is a
// plain name prefix (e.g. "myapp_dev_"). PathPrefix wins when both are set.
type Namespace struct {
	PathPrefix string `yaml:"path_prefix"`
	Prefix     string `yaml:"prefix"`
}

// Config is one provider entry of the global config file.
type Config struct {
	Type       string            `yaml:"type"`
	Profile    string            `yaml:"profile,omitempty"`
	Region     string            `yaml:"region,omitempty"`
	Path       string            `yaml:"path,omitempty"`
	Encryption *EncryptionConfig `yaml:"encryption,omitempty"`
	Extra      map[string]any    `yaml:",inline"`
}

// EncryptionConfig holds encryption settings for local file storage.
type EncryptionConfig struct {
	Type    string `yaml:"type"`
	KeyFile string `yaml:"key_file,omitempty"`
	KeyEnv  string `yaml:"key_env,omitempty"`
}

// String returns an Extra field, or "" when it is missing or not a string.
func (c Config) String(field string) string {
	s, _ := c.Extra[field].(string)
	return s
}

// Qualify builds the backend name for a bare key.
func (n Namespace) Qualify(key string) string {
	return n.Root() + key
}

// Unqualify strips the namespace from a backend name. The second result is
// false when name is outside the namespace.
func (n Namespace) Unqualify(name string) (string, bool) {
	root := n.Root()
	if !strings.HasPrefix(name, root) {
		return name, false
	}
	return strings.TrimPrefix(name, root), true
}

// Root returns the normalised prefix shared by every name in the namespace.
func (n Namespace) Root() string {
	if n.PathPrefix != "" {
		return ensureTrailingSlash(n.PathPrefix)
	}
	return n.Prefix
}

// Path returns the namespace as a slash-free hierarchical path, as used by
// stores that keep one document per namespace (e.g. "/myapp/dev/" becomes
// "myapp/dev").
func (n Namespace) Path() (string, error) {
	p := strings.Trim(n.Root(), "/")
	if p == "" {
		return "", fmt.Errorf("%w: namespace needs path_prefix or prefix", ErrNotConfigured)
	}
	return p, nil
}

func (n Namespace) String() string {
	if root := n.Root(); root != "" {
		return root
	}
	return "(root)"
}

func ensureTrailingSlash(prefix string) string {
	if strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
