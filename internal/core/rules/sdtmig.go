package rules

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sdtm/internal/core"
)

const (
	recMandatory   = "Ensure the domain contains all mandatory columns as per SDTMIG %s."
	recUnique      = "Ensure the identifying variables uniquely identify records."
	recTerminology = "Align values with the published controlled terminology."
	recUppercase   = "Rename columns to their uppercase SDTM equivalents."
)

func init() {
	registerSDTMIG("sdtmig-v4-3", "4.3")
	registerSDTMIG("sdtmig-v3-4", "3.4")

	// Catalog standards without executable rules. Runs against them succeed
	// with zero findings.
	core.Declare("sdtm-v2-0")
	core.Declare("ct-2025-03")
	core.Declare("define-xml-v2")
}

// SDTMIGRules builds the implementation guide rule set for one version.
// The rule id prefix and citations carry the version, e.g. SDTMIG43-DM-001
// and "SDTMIG 4.3 §5".
func SDTMIGRules(version string) []core.Rule {
	prefix := "SDTMIG" + strings.ReplaceAll(version, ".", "")
	guide := "SDTMIG " + version
	label := "SDTMIG v" + version
	mandatory := fmt.Sprintf(recMandatory, version)

	id := func(suffix string) string { return prefix + "-" + suffix }

	return []core.Rule{
		core.RequireDomain(id("DM-001"), "DM",
			fmt.Sprintf("Demographics domain (DM) is required for all SDTM submissions under %s.", label),
			guide+" §5", core.SeverityError),
		core.RequireVariables(id("DM-002"), "DM",
			[]string{"STUDYID", "USUBJID", "ARM"},
			guide+" §5.2", mandatory),
		core.UniqueKey(id("DM-003"), "DM",
			[]string{"STUDYID", "USUBJID"},
			guide+" §5.2", recUnique),
		core.RequireDomain(id("AE-001"), "AE",
			fmt.Sprintf("Adverse Events domain (AE) must be present when AE data are collected under %s.", label),
			guide+" §7", core.SeverityError),
		core.RequireVariables(id("AE-002"), "AE",
			[]string{"AEDECOD", "AETERM", "AESTDTC"},
			guide+" §7.4", mandatory),
		core.ControlledTerminology(id("DM-004"), "DM", "SEX",
			[]string{"M", "F", "U"},
			guide+" Controlled Terminology", recTerminology),
		core.UppercaseVariables(id("GEN-001"), guide+" General Assumptions", recUppercase),
	}
}

func registerSDTMIG(standardID, version string) {
	core.Register(standardID, SDTMIGRules(version)...)
}
