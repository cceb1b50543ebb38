// Package template renders stage drafts from case context with text/template.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/casegate/pkg/protocol"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"upper": strings.ToUpper,
	"join":  strings.Join,
	"money": func(v any) string {
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', 2, 64)
		case int:
			return strconv.Itoa(n) + ".00"
		default:
			return fmt.Sprint(v)
		}
	},
}

// Parse checks that templateStr is a valid template.
func Parse(templateStr string) (*template.Template, error) {
	tmpl, err := template.New("draft").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}

// RenderText executes templateStr against data and returns the trimmed output.
func RenderText(templateStr string, data any) (string, error) {
	tmpl, err := Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Render executes templateStr and decodes the output: JSON objects and arrays,
// numbers and booleans come back typed, anything else as a string.
func Render(templateStr string, data any) (any, error) {
	result, err := RenderText(templateStr, data)
	if err != nil {
		return nil, err
	}

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RequestContext exposes a generation request to templates as
// .case, .stage, .upstream and .financial.
func RequestContext(req protocol.GenerationRequest) map[string]any {
	upstream := make(map[string]any, len(req.Upstream))
	for stage, artifact := range req.Upstream {
		upstream[string(stage)] = map[string]any{
			"content": artifact.Content,
			"data":    artifact.Data,
			"version": artifact.Version,
		}
	}

	data := map[string]any{
		"case": map[string]any{
			"id":          req.CaseID,
			"title":       req.Title,
			"description": req.Description,
			"owner":       req.Owner,
		},
		"stage":    string(req.Stage),
		"upstream": upstream,
	}

	if req.Financial != nil {
		data["financial"] = req.Financial
	}

	return data
}
