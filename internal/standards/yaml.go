package standards

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Source produces the domain catalog and variable rules for one standard.
// The loader overwrites the returned summary fields with the catalog entry.
type Source interface {
	Load(ctx context.Context, summary core.StandardSummary) (*core.StandardDefinition, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, summary core.StandardSummary) (*core.StandardDefinition, error)

func (f SourceFunc) Load(ctx context.Context, summary core.StandardSummary) (*core.StandardDefinition, error) {
	return f(ctx, summary)
}

//go:embed data/*.yaml
var embedded embed.FS

// embeddedSources maps catalog ids to files under data/.
var embeddedSources = map[string]string{
	"sdtm-v2-0":              "data/sdtm-v2-0.yaml",
	"sdtmig-v3-4":            "data/sdtmig-3-4.yaml",
	"sdtmig-3-4":             "data/sdtmig-3-4.yaml",
	"sdtmig-v4-3":            "data/sdtmig-v4-3.yaml",
	"ct-2025-03":             "data/ct-2025-03.yaml",
	"terminology-2025-03-28": "data/ct-2025-03.yaml",
}

// RegisterEmbedded binds the built-in YAML definitions.
func (l *Loader) RegisterEmbedded() error {
	for id, path := range embeddedSources {
		data, err := embedded.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read embedded standard %s: %w", id, err)
		}
		l.Register(id, YAMLSource{Data: data, Name: path})
	}
	return nil
}

// yamlDocument is the on-disk shape of a YAML standard definition. The
// optional standard block supplies catalog metadata for directory sources.
type yamlDocument struct {
	Standard  *core.StandardSummary `yaml:"standard"`
	Domains   []core.DomainRule     `yaml:"domains"`
	Variables []core.VariableRule   `yaml:"variables"`
}

// YAMLSource decodes a definition from YAML bytes.
type YAMLSource struct {
	Data []byte
	Name string // for error messages
}

func (s YAMLSource) Load(_ context.Context, summary core.StandardSummary) (*core.StandardDefinition, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(s.Data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Name, err)
	}

	def := &core.StandardDefinition{
		StandardSummary: summary,
		Domains:         doc.Domains,
		Variables:       doc.Variables,
	}
	normalize(def)
	return def, nil
}

// MarshalYAML renders def in the on-disk YAML shape, standard block
// included, so the output can be dropped into STANDARDS_DIR.
func MarshalYAML(def *core.StandardDefinition) ([]byte, error) {
	header := def.StandardSummary
	return yaml.Marshal(yamlDocument{
		Standard:  &header,
		Domains:   def.Domains,
		Variables: def.Variables,
	})
}

// normalize upper-cases domain codes and variable names, trims list
// entries, and maps SAS datatype labels onto observed column types.
func normalize(def *core.StandardDefinition) {
	for i := range def.Domains {
		d := &def.Domains[i]
		d.Domain = strings.ToUpper(strings.TrimSpace(d.Domain))
		d.KeyVariables = cleanList(d.KeyVariables, true)
	}
	for i := range def.Variables {
		v := &def.Variables[i]
		v.Domain = strings.ToUpper(strings.TrimSpace(v.Domain))
		v.Variable = strings.ToUpper(strings.TrimSpace(v.Variable))
		v.Datatype = normalizeDatatype(v.Datatype)
		v.ControlledTerminology = cleanList(v.ControlledTerminology, false)
	}
}

// normalizeDatatype maps define-style labels onto the column type vocabulary.
// "Num" covers both integer and double columns.
func normalizeDatatype(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "char", "text", "character":
		return string(core.TypeString)
	case "num", "numeric", "float":
		return core.DatatypeNumeric
	default:
		return strings.TrimSpace(s)
	}
}

func cleanList(in []string, upper bool) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if upper {
			s = strings.ToUpper(s)
		}
		out = append(out, s)
	}
	return out
}

// LoadDir registers every <id>.yaml, <id>.yml and <id>.xlsx file in dir.
// Ids missing from the catalog are added using the file's standard block,
// or a minimal entry derived from the file name.
func (l *Loader) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read standards dir: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		path := filepath.Join(dir, e.Name())

		switch ext {
		case ".yaml", ".yml":
			data, err := os.ReadFile(path)
			if err != nil {
				return n, fmt.Errorf("read %s: %w", path, err)
			}
			l.ensureCatalogEntry(id, path, headerOf(data))
			l.Register(id, YAMLSource{Data: data, Name: path})
		case ".xlsx":
			l.ensureCatalogEntry(id, path, nil)
			if isTerminologyID(id) {
				l.Register(id, TerminologySource{Path: path})
			} else {
				l.Register(id, XLSXSource{Path: path})
			}
		default:
			continue
		}
		n++
	}
	return n, nil
}

func (l *Loader) ensureCatalogEntry(id, path string, header *core.StandardSummary) {
	if _, ok := l.catalog.Get(id); ok {
		return
	}
	entry := core.StandardSummary{ID: id, Name: strings.ToUpper(id), Group: GroupSDTMIG, Source: path}
	if header != nil {
		entry.Name = firstNonEmpty(header.Name, entry.Name)
		entry.Version = header.Version
		entry.Group = firstNonEmpty(header.Group, entry.Group)
		entry.Description = header.Description
	}
	l.catalog.Add(entry)
}

// isTerminologyID reports whether a workbook file name denotes a controlled
// terminology package (ct-2025-03.xlsx, terminology-2025-03-28.xlsx).
func isTerminologyID(id string) bool {
	id = strings.ToLower(id)
	return strings.HasPrefix(id, "ct-") || strings.Contains(id, "terminology")
}

func headerOf(data []byte) *core.StandardSummary {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Standard
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// embeddedFiles lists the embedded data files, for tests.
func embeddedFiles() ([]string, error) {
	return fs.Glob(embedded, "data/*.yaml")
}
