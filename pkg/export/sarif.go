package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/storage"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

type sarifDocument struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	ShortDescription sarifMessage   `json:"shortDescription"`
	Properties       map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func buildSARIF(d storage.Data) sarifDocument {
	rules := make(map[string]sarifRule)
	results := make([]sarifResult, 0)
	for _, f := range findings(d) {
		if _, ok := rules[f.Type]; !ok {
			rules[f.Type] = sarifRule{
				ID:               f.Type,
				Name:             f.Type,
				ShortDescription: sarifMessage{Text: fmt.Sprintf("%s exposed in client-side code", f.Type)},
				Properties: map[string]any{
					"category":          string(f.Category),
					"security-severity": f.Severity.ToSARIFScore(),
				},
			}
		}
		res := sarifResult{
			RuleID:  f.Type,
			Level:   f.Severity.ToSARIF(),
			Message: sarifMessage{Text: fmt.Sprintf("Possible %s: %s", f.Type, f.Value)},
		}
		if f.Source != "" {
			loc := sarifLocation{PhysicalLocation: sarifPhysical{ArtifactLocation: sarifArtifact{URI: f.Source}}}
			if f.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Line}
			}
			res.Locations = []sarifLocation{loc}
		}
		results = append(results, res)
	}

	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ordered := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, rules[id])
	}

	return sarifDocument{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           defaults.ToolName,
				Version:        defaults.Version,
				InformationURI: defaults.ToolURI,
				Rules:          ordered,
			}},
			Results: results,
		}},
	}
}

func writeSARIF(w io.Writer, d storage.Data) error {
	enc := jsonutil.NewStreamEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(buildSARIF(d))
}
