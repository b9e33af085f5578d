package healthcare

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/tool"
)

// ReferenceTool answers general medical reference questions from a local
// knowledge base of conditions, medications, first aid, and preventive care.
type ReferenceTool struct {
	references map[string]interface{}
}

// NewReferenceTool loads (seeding on first use) the reference database.
func NewReferenceTool(dataDir string) (*ReferenceTool, error) {
	path := filepath.Join(dataDir, "reference", "medical_references.json")
	data, ok := loadJSON(path)
	if !ok {
		data = sampleReferences()
		if err := saveJSON(path, data); err != nil {
			return nil, fmt.Errorf("seed reference database: %w", err)
		}
	}
	return &ReferenceTool{references: data}, nil
}

func (t *ReferenceTool) Name() string { return "access_medical_reference" }

func (t *ReferenceTool) Description() string {
	return "Access general medical reference information about conditions, medications, first aid, and preventive care"
}

func (t *ReferenceTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{
				"type":        "string",
				"enum":        []interface{}{"conditions", "medications", "first_aid", "preventive_care"},
				"description": "Category of medical reference information",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Specific item to look up (e.g., 'hypertension', 'metformin', 'choking')",
			},
			"info_type": map[string]interface{}{
				"type":        "string",
				"description": "Specific field to return (e.g., 'symptoms', 'treatments', 'side_effects')",
			},
		},
	}
}

func (t *ReferenceTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	category := stringArg(args, "category")
	if category == "" {
		return tool.Result{
			"found":                false,
			"available_categories": t.categories(),
			"message":              "Please specify a category of medical information",
		}, nil
	}

	entries, ok := t.references[category].(map[string]interface{})
	if !ok {
		return tool.Result{
			"error":                fmt.Sprintf("Unknown category: %s", category),
			"available_categories": t.categories(),
		}, nil
	}

	query := stringArg(args, "query")
	if query == "" {
		return tool.Result{
			"found":           true,
			"category":        category,
			"available_items": sortedKeys(entries),
		}, nil
	}

	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query)), " ", "_")
	entry, ok := entries[key].(map[string]interface{})
	if !ok {
		return tool.Result{
			"found":       false,
			"category":    category,
			"query":       query,
			"suggestions": suggestEntries(entries, key),
			"message":     fmt.Sprintf("No reference information found for '%s'", query),
		}, nil
	}

	if infoType := stringArg(args, "info_type"); infoType != "" {
		value, ok := entry[infoType]
		if !ok {
			return tool.Result{
				"found":            false,
				"category":         category,
				"item":             key,
				"available_fields": sortedKeys(entry),
				"message":          fmt.Sprintf("No '%s' information available for %s", infoType, key),
			}, nil
		}
		return tool.Result{
			"found":    true,
			"category": category,
			"item":     key,
			infoType:   value,
		}, nil
	}

	return tool.Result{
		"found":       true,
		"category":    category,
		"item":        key,
		"information": entry,
	}, nil
}

func (t *ReferenceTool) categories() []string {
	return sortedKeys(t.references)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// suggestEntries returns items whose name contains the query or vice versa.
func suggestEntries(entries map[string]interface{}, key string) []string {
	suggestions := []string{}
	for name := range entries {
		if strings.Contains(name, key) || strings.Contains(key, name) {
			suggestions = append(suggestions, name)
		}
	}
	sort.Strings(suggestions)
	return suggestions
}

// sampleReferences is the demo knowledge base seeded on first run.
func sampleReferences() map[string]interface{} {
	return map[string]interface{}{
		"conditions": map[string]interface{}{
			"hypertension": map[string]interface{}{
				"description": "High blood pressure, a condition where blood pushes against artery walls with too much force",
				"symptoms":    []interface{}{"Usually none", "Headaches in severe cases", "Shortness of breath", "Nosebleeds"},
				"treatments":  []interface{}{"Lifestyle changes", "ACE inhibitors", "Diuretics", "Beta blockers", "Calcium channel blockers"},
				"prevention":  []interface{}{"Regular exercise", "Low-sodium diet", "Maintaining healthy weight", "Limiting alcohol", "Not smoking"},
				"complications": []interface{}{
					"Heart attack", "Stroke", "Kidney damage", "Vision loss",
				},
			},
			"type2_diabetes": map[string]interface{}{
				"description": "A chronic condition affecting how the body processes blood sugar",
				"symptoms":    []interface{}{"Increased thirst", "Frequent urination", "Fatigue", "Blurred vision", "Slow-healing sores"},
				"treatments":  []interface{}{"Diet management", "Exercise", "Metformin", "Insulin therapy", "Blood sugar monitoring"},
				"prevention":  []interface{}{"Healthy diet", "Regular physical activity", "Weight management", "Regular screenings"},
				"complications": []interface{}{
					"Heart disease", "Nerve damage", "Kidney damage", "Eye damage", "Foot problems",
				},
			},
			"asthma": map[string]interface{}{
				"description": "A condition in which airways narrow, swell, and produce extra mucus",
				"symptoms":    []interface{}{"Shortness of breath", "Chest tightness", "Wheezing", "Coughing at night"},
				"treatments":  []interface{}{"Rescue inhalers", "Inhaled corticosteroids", "Long-acting bronchodilators", "Allergy management"},
				"prevention":  []interface{}{"Avoiding triggers", "Air filtration", "Regular controller medication use", "Flu vaccination"},
				"complications": []interface{}{
					"Severe attacks requiring emergency care", "Permanent airway remodeling", "Sleep disruption",
				},
			},
		},
		"medications": map[string]interface{}{
			"metformin": map[string]interface{}{
				"brand_names":       []interface{}{"Glucophage", "Fortamet", "Glumetza"},
				"drug_class":        "Biguanide",
				"usage":             "First-line treatment for type 2 diabetes",
				"dosage":            "500-2550 mg daily, usually divided with meals",
				"side_effects":      []interface{}{"Nausea", "Diarrhea", "Stomach upset", "Metallic taste", "Vitamin B12 deficiency"},
				"contraindications": []interface{}{"Severe kidney disease", "Metabolic acidosis", "Iodinated contrast procedures"},
			},
			"lisinopril": map[string]interface{}{
				"brand_names":       []interface{}{"Prinivil", "Zestril"},
				"drug_class":        "ACE inhibitor",
				"usage":             "High blood pressure and heart failure",
				"dosage":            "10-40 mg once daily",
				"side_effects":      []interface{}{"Dry cough", "Dizziness", "Headache", "Elevated potassium"},
				"contraindications": []interface{}{"Pregnancy", "History of angioedema", "Bilateral renal artery stenosis"},
			},
			"atorvastatin": map[string]interface{}{
				"brand_names":       []interface{}{"Lipitor"},
				"drug_class":        "Statin",
				"usage":             "Lowering cholesterol and preventing cardiovascular disease",
				"dosage":            "10-80 mg once daily",
				"side_effects":      []interface{}{"Muscle pain", "Digestive problems", "Elevated liver enzymes"},
				"contraindications": []interface{}{"Active liver disease", "Pregnancy", "Breastfeeding"},
			},
		},
		"first_aid": map[string]interface{}{
			"heart_attack": map[string]interface{}{
				"description": "Blocked blood flow to the heart muscle",
				"steps": []interface{}{
					"Call emergency services immediately",
					"Have the person sit down and rest",
					"Loosen tight clothing",
					"Give aspirin if not allergic and advised",
					"Begin CPR if the person becomes unresponsive and is not breathing",
				},
			},
			"stroke": map[string]interface{}{
				"description": "Interrupted blood supply to part of the brain",
				"steps": []interface{}{
					"Use FAST: Face drooping, Arm weakness, Speech difficulty, Time to call emergency services",
					"Note the time symptoms started",
					"Keep the person still and calm",
					"Do not give food, drink, or medication",
				},
			},
			"choking": map[string]interface{}{
				"description": "Airway blocked by a foreign object",
				"steps": []interface{}{
					"Ask if the person can speak or cough",
					"Give 5 back blows between the shoulder blades",
					"Give 5 abdominal thrusts (Heimlich maneuver)",
					"Alternate back blows and thrusts until the object is expelled",
					"Call emergency services if the person loses consciousness",
				},
			},
		},
		"preventive_care": map[string]interface{}{
			"adult_screenings": map[string]interface{}{
				"description": "Recommended routine screenings for adults",
				"recommendations": []interface{}{
					"Blood pressure: at least every 2 years",
					"Cholesterol: every 4-6 years starting at age 20",
					"Colorectal cancer: starting at age 45",
					"Mammogram: every 1-2 years for women starting at age 40",
					"Diabetes: every 3 years starting at age 45",
				},
			},
			"vaccinations": map[string]interface{}{
				"description": "Recommended adult immunizations",
				"recommendations": []interface{}{
					"Influenza: annually",
					"Tdap: once, then Td booster every 10 years",
					"Shingles: two doses at age 50+",
					"Pneumococcal: at age 65+ or earlier with risk factors",
					"COVID-19: per current guidance",
				},
			},
		},
	}
}

var _ tool.Tool = (*ReferenceTool)(nil)
