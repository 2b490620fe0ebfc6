package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Rule defaults applied when no mapping matches.
const (
	DefaultMultiplier = 1.0
	DefaultCategory   = "Otros"
)

// CategoryRules is the immutable lookup table driving exam categorization.
// It is loaded once at startup and shared read-only across the run, which is
// what makes resolution deterministic.
type CategoryRules struct {
	Multipliers       map[string]float64 `json:"multipliers"`
	CultivoMultiplier float64            `json:"cultivo_multiplier"`
	ExamCategories    map[string]string  `json:"exam_categories"`
	SectionCategories map[string]string  `json:"seccion_categories"`
}

// DefaultCategoryRules returns the built-in rule set used when no rules file
// is present, mirroring the hospital's standing configuration.
func DefaultCategoryRules() *CategoryRules {
	return &CategoryRules{
		Multipliers: map[string]float64{
			"BIOMETRÍA HEMÁTICA":                18,
			"COPROPARASITARIO":                  2,
			"ELEMENTAL Y MICROSCÓPICO DE ORINA": 3,
			"GASOMETRIA ARTERIAL":               14,
			"GASOMETRIA VENOSA":                 14,
			"TIPIFICACION SANGUINEA RH (D)":     3,
		},
		CultivoMultiplier: 10,
		ExamCategories: map[string]string{
			"LEISHMANIA":               "Hematologico",
			"CRISTALOGRAFÍA":           "Bacteriológico",
			"GRAM (GOTA FRESCA) ORINA": "Bacteriológico",
			"GASOMETRIA ARTERIAL":      "Quimica sanguinea",
			"GASOMETRIA VENOSA":        "Quimica sanguinea",
		},
		SectionCategories: map[string]string{
			"Autoinmunes e Infecciosas": "Serologicos",
			"Drogas y Fármacos":         "Serologicos",
			"Serología":                 "Serologicos",
			"Bioquímica":                "Quimica sanguinea",
			"Electrolitos":              "Quimica sanguinea",
			"Inmunoquímica Sanguínea":   "Quimica sanguinea",
			"Química Clínica en Orina":  "Quimica sanguinea",
			"Uroanálisis":               "Orina",
			"Coproanálisis":             "Materias fecales",
			"Biología Molecular":        "Hormonales",
			"Estudios Hormonales":       "Hormonales",
			"Marcadores Tumorales":      "Hormonales",
			"Coagulación":               "Hematologico",
			"Hematología":               "Hematologico",
			"Inmunohematología":         "Hematologico",
			"Microbiología":             "Bacteriológico",
		},
	}
}

// LoadCategoryRules reads the rules JSON file. A missing file yields the
// defaults; a malformed file is a fatal configuration error.
func LoadCategoryRules(path string) (*CategoryRules, error) {
	if path == "" {
		return DefaultCategoryRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCategoryRules(), nil
		}
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var rules CategoryRules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	rules.normalize()
	return &rules, nil
}

// normalize fills nil maps and zero fields so resolution never hits a nil
// lookup and retains the cultivo default.
func (r *CategoryRules) normalize() {
	if r.Multipliers == nil {
		r.Multipliers = map[string]float64{}
	}
	if r.ExamCategories == nil {
		r.ExamCategories = map[string]string{}
	}
	if r.SectionCategories == nil {
		r.SectionCategories = map[string]string{}
	}
	if r.CultivoMultiplier == 0 {
		r.CultivoMultiplier = 10
	}
}
