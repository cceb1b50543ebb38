package templateagent

import "github.com/dukex/casegate/pkg/models"

var defaultTemplates = map[models.Stage]string{
	models.StageRequirements: `# Requirements: {{ .case.title }}

Requested by {{ .case.owner }}.

{{ .case.description }}`,

	models.StageDesign: `# Design: {{ .case.title }}

Derived from requirements v{{ .upstream.requirements.version }}:

{{ .upstream.requirements.content }}`,

	models.StageCost: `# Cost estimate: {{ .case.title }}

Based on design v{{ .upstream.design.version }}.
{{- with .upstream.design.data }}{{ with .effort_days }}
Estimated effort: {{ . }} days{{ end }}{{ end }}`,

	models.StageValue: `# Value scenarios: {{ .case.title }}

Based on requirements v{{ .upstream.requirements.version }}.`,

	models.StageFinancial: `# Financial summary: {{ .case.title }}
{{ with .financial }}
Primary scenario {{ .Primary }} in {{ .Currency }}; cost {{ money .Cost.Amount }}.
{{- range .Scenarios }}
- {{ .Name }}: net {{ money .NetValue }}, ROI {{ .ROIPercent }}%
{{- end }}{{ end }}`,
}
