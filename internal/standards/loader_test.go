package standards

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sdtm/internal/core"
)

func TestCatalogList(t *testing.T) {
	list := DefaultCatalog().List()
	require.NotEmpty(t, list)

	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.Group == cur.Group {
			assert.Less(t, prev.ID, cur.ID)
		} else {
			assert.Less(t, prev.Group, cur.Group)
		}
	}

	s, ok := DefaultCatalog().Get("sdtmig-v4-3")
	require.True(t, ok)
	assert.Equal(t, "SDTMIG v4.3", s.Label())
}

func TestLoader_UnknownStandard(t *testing.T) {
	l, err := NewDefaultLoader()
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "sdtmig-v9-9")
	var unknown *core.UnknownStandardError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "sdtmig-v9-9", unknown.StandardID)
}

func TestLoader_CatalogEntryWithoutSource(t *testing.T) {
	l, err := NewDefaultLoader()
	require.NoError(t, err)

	def, err := l.Load(context.Background(), "define-xml-v2")
	require.NoError(t, err)
	assert.Empty(t, def.Domains)
	assert.Empty(t, def.Variables)
	assert.Equal(t, "Define-XML Specification", def.Name)
}

func TestLoader_Embedded(t *testing.T) {
	l, err := NewDefaultLoader()
	require.NoError(t, err)

	files, err := embeddedFiles()
	require.NoError(t, err)
	assert.Len(t, files, 4)

	for id := range embeddedSources {
		def, err := l.Load(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, id, def.ID)
	}

	def, err := l.Load(context.Background(), "sdtmig-3-4")
	require.NoError(t, err)
	dm, ok := def.FindDomain("dm")
	require.True(t, ok)
	assert.Equal(t, []string{"STUDYID", "USUBJID"}, dm.KeyVariables)

	var sex, age core.VariableRule
	for _, v := range def.VariablesFor("DM") {
		switch v.Variable {
		case "SEX":
			sex = v
		case "AGE":
			age = v
		}
	}
	assert.True(t, sex.Required)
	assert.Equal(t, "string", sex.Datatype, "Char is normalized")
	assert.Equal(t, core.DatatypeNumeric, age.Datatype, "Num is normalized")
	assert.Contains(t, sex.ControlledTerminology, "M")
}

func TestLoader_AtMostOncePerKey(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	l := NewLoader(NewCatalog(core.StandardSummary{ID: "slow", Name: "Slow", Version: "1"}))
	l.Register("slow", SourceFunc(func(ctx context.Context, s core.StandardSummary) (*core.StandardDefinition, error) {
		calls.Add(1)
		<-release
		return &core.StandardDefinition{Domains: []core.DomainRule{{Domain: "DM"}}}, nil
	}))

	var wg sync.WaitGroup
	results := make([]*core.StandardDefinition, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			def, err := l.Load(context.Background(), "slow")
			assert.NoError(t, err)
			results[i] = def
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, l.loadCount())
	for _, def := range results {
		assert.Same(t, results[0], def)
	}

	_, err := l.Load(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cached after first load")
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	l := NewLoader(NewCatalog(core.StandardSummary{ID: "flaky"}))
	l.Register("flaky", SourceFunc(func(context.Context, core.StandardSummary) (*core.StandardDefinition, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return &core.StandardDefinition{}, nil
	}))

	_, err := l.Load(context.Background(), "flaky")
	require.Error(t, err)

	_, err = l.Load(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_RejectsDuplicateVariableRules(t *testing.T) {
	l := NewLoader(NewCatalog(core.StandardSummary{ID: "dup"}))
	l.Register("dup", YAMLSource{Name: "dup.yaml", Data: []byte(`
variables:
  - {domain: DM, variable: SEX}
  - {domain: dm, variable: sex}
`)})

	_, err := l.Load(context.Background(), "dup")
	assert.ErrorIs(t, err, core.ErrDuplicateVariable)
}

func TestLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sponsor-std.yaml"), []byte(`
standard:
  name: Sponsor Standard
  version: "1.2"
  group: SDTMIG
domains:
  - domain: dm
    keyVariables: [studyid, usubjid]
variables:
  - {domain: dm, variable: studyid, datatype: char, required: true}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	l, err := NewDefaultLoader()
	require.NoError(t, err)

	n, err := l.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	summary, ok := l.Catalog().Get("sponsor-std")
	require.True(t, ok)
	assert.Equal(t, "Sponsor Standard v1.2", summary.Label())

	def, err := l.Load(context.Background(), "sponsor-std")
	require.NoError(t, err)
	require.Len(t, def.Domains, 1)
	assert.Equal(t, "DM", def.Domains[0].Domain)
	assert.Equal(t, []string{"STUDYID", "USUBJID"}, def.Domains[0].KeyVariables)
	assert.Equal(t, "STUDYID", def.Variables[0].Variable)
}

func TestMarshalYAML_ReloadsFromDir(t *testing.T) {
	l, err := NewDefaultLoader()
	require.NoError(t, err)
	def, err := l.Load(context.Background(), "sdtmig-3-4")
	require.NoError(t, err)

	data, err := MarshalYAML(def)
	require.NoError(t, err)
	assert.Contains(t, string(data), "standard:")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sponsor-copy.yaml"), data, 0o644))

	fresh, err := NewDefaultLoader()
	require.NoError(t, err)
	_, err = fresh.LoadDir(dir)
	require.NoError(t, err)

	copied, err := fresh.Load(context.Background(), "sponsor-copy")
	require.NoError(t, err)
	assert.Equal(t, def.Name, copied.Name)
	require.Len(t, copied.Domains, len(def.Domains))
	assert.Equal(t, def.Domains[0].Domain, copied.Domains[0].Domain)
	assert.Equal(t, def.Domains[0].KeyVariables, copied.Domains[0].KeyVariables)
	assert.Equal(t, len(def.Variables), len(copied.Variables))
}
