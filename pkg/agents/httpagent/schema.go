package httpagent

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/casegate/pkg/financial"
	"github.com/dukex/casegate/pkg/models"
)

var nonNegativeNumber = map[string]any{"type": "number", "minimum": 0}

var currencyCode = map[string]any{"type": "string", "pattern": "^[A-Za-z]{3}$"}

var dataSchemas = map[models.Stage]map[string]any{
	models.StageCost: {
		"type":     "object",
		"required": []any{financial.KeyTotalCost, financial.KeyCurrency},
		"properties": map[string]any{
			financial.KeyTotalCost: nonNegativeNumber,
			financial.KeyCurrency:  currencyCode,
		},
	},
	models.StageValue: {
		"type":     "object",
		"required": []any{financial.KeyScenarios},
		"properties": map[string]any{
			financial.KeyCurrency: currencyCode,
			financial.KeyScenarios: map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{financial.KeyName, financial.KeyAmount},
					"properties": map[string]any{
						financial.KeyName:     map[string]any{"type": "string", "minLength": 1},
						financial.KeyAmount:   nonNegativeNumber,
						financial.KeyCurrency: currencyCode,
					},
				},
			},
		},
	},
}

// ResponseSchema returns the JSON schema a generator reply must satisfy for stage.
// Cost and value replies must carry the structured data the financial model reads.
func ResponseSchema(stage models.Stage) map[string]any {
	data := map[string]any{"type": "object"}
	required := []any{"content"}

	if stageData, ok := dataSchemas[stage]; ok {
		data = stageData
		required = append(required, "data")
	}

	return map[string]any{
		"type":     "object",
		"required": required,
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "minLength": 1},
			"data":    data,
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"model": map[string]any{"type": "string"},
					"extra": map[string]any{"type": "object"},
				},
			},
		},
	}
}

func validateJSONSchema(document map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
