package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sdtm/internal/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDataset(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_WritesReportsAndFailsOnErrors(t *testing.T) {
	dir := t.TempDir()
	ae := writeDataset(t, dir, "ae.csv", "STUDYID,DOMAIN,USUBJID,AETERM,AEDECOD,AESTDTC\nS1,AE,S1-001,Headache,HEADACHE,2024-01-02\n")
	xlsx := filepath.Join(dir, "report.xlsx")
	define := filepath.Join(dir, "define.xml")

	out, err := execute(t, "run", "--json", "--out-xlsx", xlsx, "--define-xml", define, ae)

	var exit *exitError
	require.ErrorAs(t, err, &exit, "missing DM is an error finding")
	assert.Equal(t, 2, exit.code)

	var summary core.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, []string{"AE"}, summary.DatasetNames)
	assert.Positive(t, summary.Summary.Errors)

	for _, p := range []string{xlsx, define} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
}

func TestRun_FailOnNone(t *testing.T) {
	dir := t.TempDir()
	ae := writeDataset(t, dir, "ae.csv", "STUDYID,DOMAIN,USUBJID,AETERM\nS1,AE,S1-001,Headache\n")

	out, err := execute(t, "run", "--fail-on", "none", ae)
	require.NoError(t, err)
	assert.Contains(t, out, "against sdtmig-v4-3")
	assert.Contains(t, out, "SEVERITY")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	ae := writeDataset(t, dir, "ae.csv", "STUDYID,DOMAIN\nS1,AE\n")

	_, err := execute(t, "run", "--fail-on", "sometimes", ae)
	assert.ErrorContains(t, err, "--fail-on")

	_, err = execute(t, "run", filepath.Join(dir, "missing.csv"))
	assert.ErrorContains(t, err, "read dataset")

	_, err = execute(t, "run", "--standard", "no-such-standard", ae)
	assert.ErrorContains(t, err, "STD001")

	_, err = execute(t, "run")
	assert.Error(t, err, "at least one file is required")
}

func TestStandardsListAndShow(t *testing.T) {
	out, err := execute(t, "standards", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sdtmig-v4-3")
	assert.Contains(t, out, "code rules")
	assert.Contains(t, out, "definition")

	out, err = execute(t, "standards", "show", "sdtmig-3-4")
	require.NoError(t, err)
	assert.Contains(t, out, "standard:")
	assert.Contains(t, out, "domains:")

	_, err = execute(t, "standards", "show", "nope")
	assert.ErrorIs(t, err, core.ErrUnknownStandard)
}
