package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/sdtm/internal/core"
)

const (
	defineNamespace = "http://www.cdisc.org/ns/def/v2.0"
	xlinkNamespace  = "http://www.w3.org/1999/xlink"
	studyName       = "SDTM Validation Study"
	protocolName    = "Unknown Protocol"
)

type defineDocument struct {
	XMLName        xml.Name         `xml:"Define"`
	Xmlns          string           `xml:"xmlns,attr"`
	XmlnsXlink     string           `xml:"xmlns:xlink,attr"`
	Study          defineStudy      `xml:"Study"`
	ItemGroupDefs  []itemGroupDef   `xml:"ItemGroupDefs>ItemGroupDef"`
	AnalysisResult []analysisResult `xml:"AnalysisResults>AnalysisResult,omitempty"`
}

type defineStudy struct {
	OID              string `xml:"OID,attr"`
	StudyName        string `xml:"GlobalVariables>StudyName"`
	StudyDescription string `xml:"GlobalVariables>StudyDescription"`
	ProtocolName     string `xml:"GlobalVariables>ProtocolName"`
}

type itemGroupDef struct {
	OID            string          `xml:"OID,attr"`
	Name           string          `xml:"Name,attr"`
	Repeating      string          `xml:"Repeating,attr"`
	Purpose        string          `xml:"Purpose,attr"`
	SASDatasetName string          `xml:"SASDatasetName,attr"`
	Description    translatedBlock `xml:"Description"`
}

type analysisResult struct {
	OID         string          `xml:"OID,attr"`
	RuleID      string          `xml:"RuleID,attr,omitempty"`
	Domain      string          `xml:"Domain,attr"`
	Variable    string          `xml:"Variable,attr,omitempty"`
	Severity    string          `xml:"Severity,attr"`
	Description translatedBlock `xml:"Description"`
	Reference   string          `xml:"Reference,omitempty"`
}

type translatedBlock struct {
	Text translatedText `xml:"TranslatedText"`
}

type translatedText struct {
	Lang  string `xml:"xml:lang,attr"`
	Value string `xml:",chardata"`
}

func english(s string) translatedBlock {
	return translatedBlock{Text: translatedText{Lang: "en", Value: s}}
}

// WriteDefineXML writes a Define-XML 2.0 snapshot of summary: one
// ItemGroupDef per dataset and one AnalysisResult per finding.
func WriteDefineXML(w io.Writer, summary *core.RunSummary) error {
	if summary == nil {
		return fmt.Errorf("run summary is required")
	}

	doc := defineDocument{
		Xmlns:      defineNamespace,
		XmlnsXlink: xlinkNamespace,
		Study: defineStudy{
			OID:              "STUDY",
			StudyName:        studyName,
			StudyDescription: "Generated from compliance run " + summary.ID + " on " + summary.StartedAt.UTC().Format(time.RFC3339),
			ProtocolName:     protocolName,
		},
	}

	for _, d := range summary.Datasets {
		doc.ItemGroupDefs = append(doc.ItemGroupDefs, itemGroupDef{
			OID:            "IG." + d.Domain,
			Name:           d.Domain,
			Repeating:      "No",
			Purpose:        "Tabulation",
			SASDatasetName: d.Domain,
			Description:    english(fmt.Sprintf("%s (%d rows)", d.Name, d.RowCount)),
		})
	}

	for _, f := range summary.Findings {
		doc.AnalysisResult = append(doc.AnalysisResult, analysisResult{
			OID:         "AR." + f.ID,
			RuleID:      f.RuleID,
			Domain:      f.Domain,
			Variable:    f.Variable,
			Severity:    string(f.Severity),
			Description: english(f.Message),
			Reference:   f.RuleReference,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode define.xml: %w", err)
	}
	return enc.Close()
}
