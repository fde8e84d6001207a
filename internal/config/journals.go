package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// JournalCatalog is the set of canonical journal names accepted by the
// papers listing. Names are nested under domains and optional subdomains:
//
//	domains:
//	  information_systems:
//	    journals: [MIS Quarterly]
//	    subdomains:
//	      hci:
//	        journals:
//	          - name: Human-Computer Interaction
type JournalCatalog struct {
	names map[string]struct{}
}

// LoadJournalCatalog reads the catalog from path. An empty path yields an
// open catalog that accepts any journal name.
func LoadJournalCatalog(path string) (*JournalCatalog, error) {
	if path == "" {
		return &JournalCatalog{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journals file: %w", err)
	}
	return ParseJournalCatalog(raw)
}

func ParseJournalCatalog(raw []byte) (*JournalCatalog, error) {
	var doc struct {
		Domains map[string]journalNode `yaml:"domains"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse journals file: %w", err)
	}

	c := &JournalCatalog{names: map[string]struct{}{}}
	for _, node := range doc.Domains {
		node.collect(c.names)
	}
	return c, nil
}

type journalNode struct {
	Journals   []journalEntry         `yaml:"journals"`
	Subdomains map[string]journalNode `yaml:"subdomains"`
}

func (n journalNode) collect(into map[string]struct{}) {
	for _, j := range n.Journals {
		if name := strings.TrimSpace(j.Name); name != "" {
			into[name] = struct{}{}
		}
	}
	for _, sub := range n.Subdomains {
		sub.collect(into)
	}
}

// journalEntry accepts either a bare string or a mapping with a name key.
type journalEntry struct {
	Name string
}

func (e *journalEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	var m struct {
		Name string `yaml:"name"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	e.Name = m.Name
	return nil
}

// Open reports whether the catalog accepts every name.
func (c *JournalCatalog) Open() bool {
	return c == nil || c.names == nil
}

func (c *JournalCatalog) Contains(name string) bool {
	if c.Open() {
		return true
	}
	_, ok := c.names[name]
	return ok
}

// Unknown returns the names not present in the catalog, in input order.
func (c *JournalCatalog) Unknown(names []string) []string {
	var out []string
	for _, n := range names {
		if !c.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

func (c *JournalCatalog) Names() []string {
	if c.Open() {
		return nil
	}
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
