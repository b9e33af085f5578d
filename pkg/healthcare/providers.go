package healthcare

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/tool"
)

// ProviderLookupTool finds healthcare providers by specialty, location,
// insurance, or language from the local provider directory.
type ProviderLookupTool struct {
	providers []map[string]interface{}
}

// NewProviderLookupTool loads (seeding on first use) the provider
// directory.
func NewProviderLookupTool(dataDir string) (*ProviderLookupTool, error) {
	path := filepath.Join(dataDir, "providers", "providers_database.json")
	data, ok := loadJSON(path)
	if !ok {
		data = sampleProviders()
		if err := saveJSON(path, data); err != nil {
			return nil, fmt.Errorf("seed provider database: %w", err)
		}
	}
	return &ProviderLookupTool{providers: objectList(data, "providers")}, nil
}

func (t *ProviderLookupTool) Name() string { return "find_healthcare_providers" }

func (t *ProviderLookupTool) Description() string {
	return "Find healthcare providers by specialty, location, or insurance acceptance"
}

func (t *ProviderLookupTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"specialty": map[string]interface{}{
				"type":        "string",
				"description": "Medical specialty to filter providers by (e.g., 'cardiology', 'dermatology')",
			},
			"location": map[string]interface{}{
				"type":        "string",
				"description": "Location to filter providers by (city, state, or zip code)",
			},
			"insurance": map[string]interface{}{
				"type":        "string",
				"description": "Insurance provider to filter by (e.g., 'Medicare', 'BlueCross')",
			},
			"languages": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Languages spoken by the provider",
			},
			"accepting_patients": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether to only show providers accepting new patients",
			},
			"provider_id": map[string]interface{}{
				"type":        "string",
				"description": "Specific provider ID to get detailed information for",
			},
		},
	}
}

func (t *ProviderLookupTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	if providerID := stringArg(args, "provider_id"); providerID != "" {
		for _, p := range t.providers {
			if p["id"] == providerID {
				return tool.Result{"found": true, "provider": p}, nil
			}
		}
		return tool.Result{
			"found":   false,
			"message": fmt.Sprintf("Provider with ID %s not found", providerID),
		}, nil
	}

	filtered := t.providers

	if specialty := strings.ToLower(stringArg(args, "specialty")); specialty != "" {
		filtered = filterProviders(filtered, func(p map[string]interface{}) bool {
			for _, s := range stringList(p["specialties"]) {
				if strings.Contains(strings.ToLower(s), specialty) {
					return true
				}
			}
			return false
		})
	}

	if location := strings.ToLower(stringArg(args, "location")); location != "" {
		filtered = filterProviders(filtered, func(p map[string]interface{}) bool {
			loc, _ := p["location"].(map[string]interface{})
			return strings.Contains(strings.ToLower(stringArg(loc, "city")), location) ||
				strings.Contains(strings.ToLower(stringArg(loc, "state")), location) ||
				strings.Contains(stringArg(loc, "zip"), location)
		})
	}

	if insurance := strings.ToLower(stringArg(args, "insurance")); insurance != "" {
		filtered = filterProviders(filtered, func(p map[string]interface{}) bool {
			for _, ins := range stringList(p["insurance_accepted"]) {
				if strings.Contains(strings.ToLower(ins), insurance) {
					return true
				}
			}
			return false
		})
	}

	if langs := stringListArg(args, "languages"); len(langs) > 0 {
		want := map[string]bool{}
		for _, l := range langs {
			want[strings.ToLower(l)] = true
		}
		filtered = filterProviders(filtered, func(p map[string]interface{}) bool {
			for _, l := range stringList(p["languages"]) {
				if want[strings.ToLower(l)] {
					return true
				}
			}
			return false
		})
	}

	if accepting, _ := args["accepting_patients"].(bool); accepting {
		filtered = filterProviders(filtered, func(p map[string]interface{}) bool {
			ok, _ := p["accepting_patients"].(bool)
			return ok
		})
	}

	return tool.Result{
		"found":     len(filtered) > 0,
		"providers": filtered,
		"count":     len(filtered),
	}, nil
}

func filterProviders(providers []map[string]interface{}, keep func(map[string]interface{}) bool) []map[string]interface{} {
	out := []map[string]interface{}{}
	for _, p := range providers {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func stringList(v interface{}) []string {
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// sampleProviders is the demo directory seeded on first run.
func sampleProviders() map[string]interface{} {
	provider := func(id, name string, specialties []interface{}, address, city, zip string, insurance, languages []interface{}, accepting bool) map[string]interface{} {
		return map[string]interface{}{
			"id":          id,
			"name":        name,
			"specialties": specialties,
			"location": map[string]interface{}{
				"address": address,
				"city":    city,
				"state":   "CA",
				"zip":     zip,
			},
			"insurance_accepted": insurance,
			"languages":          languages,
			"accepting_patients": accepting,
		}
	}

	return map[string]interface{}{
		"providers": []interface{}{
			provider("prov_001", "Dr. Jane Smith",
				[]interface{}{"Family Medicine", "Primary Care"},
				"123 Health Street", "Medville", "90210",
				[]interface{}{"BlueCross", "Medicare", "Aetna", "UnitedHealth"},
				[]interface{}{"English", "Spanish"}, true),
			provider("prov_002", "Dr. Robert Johnson",
				[]interface{}{"Cardiology", "Internal Medicine"},
				"456 Heart Avenue", "Medville", "90210",
				[]interface{}{"BlueCross", "Medicare", "UnitedHealth"},
				[]interface{}{"English"}, true),
			provider("prov_003", "Dr. Sarah Lee",
				[]interface{}{"Dermatology"},
				"789 Skin Road", "Medville", "90211",
				[]interface{}{"BlueCross", "Medicare", "Cigna"},
				[]interface{}{"English", "Mandarin"}, true),
			provider("prov_004", "Dr. Michael Wilson",
				[]interface{}{"Neurology"},
				"101 Brain Lane", "Medville", "90212",
				[]interface{}{"BlueCross", "Aetna", "UnitedHealth"},
				[]interface{}{"English", "French"}, false),
			provider("prov_005", "Dr. Emily Chen",
				[]interface{}{"Pediatrics"},
				"202 Child Drive", "Medville", "90210",
				[]interface{}{"BlueCross", "Medicare", "Medicaid", "UnitedHealth"},
				[]interface{}{"English", "Mandarin", "Cantonese"}, true),
		},
	}
}

var _ tool.Tool = (*ProviderLookupTool)(nil)
