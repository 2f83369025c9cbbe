// Package seed loads demo data for a tenant from a YAML fixture. Everything
// is written through the services, so seeded prices go through the same
// ledger as prices recorded by hand.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoFixture []byte

// Fixture is the YAML document. Ingredients, price changes and recipes refer
// to other entries by name.
type Fixture struct {
	Categories       []CategoryFixture    `yaml:"categories"`
	RecipeCategories []CategoryFixture    `yaml:"recipe_categories"`
	Suppliers        []SupplierFixture    `yaml:"suppliers"`
	Ingredients      []IngredientFixture  `yaml:"ingredients"`
	PriceChanges     []PriceChangeFixture `yaml:"price_changes"`
	Recipes          []RecipeFixture      `yaml:"recipes"`
}

type CategoryFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Color       string `yaml:"color"`
}

type SupplierFixture struct {
	Name          string `yaml:"name"`
	ContactPerson string `yaml:"contact_person"`
	Phone         string `yaml:"phone"`
	Email         string `yaml:"email"`
}

type IngredientFixture struct {
	Name            string `yaml:"name"`
	Category        string `yaml:"category"`
	Supplier        string `yaml:"supplier"`
	Unit            string `yaml:"unit"`
	TotalCost       string `yaml:"total_cost"`
	PackageQuantity string `yaml:"package_quantity"`
	Notes           string `yaml:"notes"`
}

type PriceChangeFixture struct {
	Ingredient    string `yaml:"ingredient"`
	NewPrice      string `yaml:"new_price"`
	EffectiveDate string `yaml:"effective_date"` // YYYY-MM-DD, empty for today
	Notes         string `yaml:"notes"`
}

type RecipeFixture struct {
	Name            string        `yaml:"name"`
	Category        string        `yaml:"category"`
	Description     string        `yaml:"description"`
	ChefNotes       string        `yaml:"chef_notes"`
	PreparationTime *int          `yaml:"preparation_time"`
	Servings        int           `yaml:"servings"`
	SuggestedPrice  string        `yaml:"suggested_price"`
	Lines           []LineFixture `yaml:"lines"`
}

type LineFixture struct {
	Ingredient string `yaml:"ingredient"`
	Quantity   string `yaml:"quantity"`
}

// Parse decodes and checks a fixture. Unknown keys are rejected so a typo
// does not silently drop data.
func Parse(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Demo returns the bundled demo kitchen.
func Demo() (*Fixture, error) {
	return Parse(demoFixture)
}

// check verifies numbers parse and name references resolve within the file.
func (f *Fixture) check() error {
	categories := nameSet(len(f.Categories))
	for _, c := range f.Categories {
		categories.add(c.Name)
	}
	recipeCategories := nameSet(len(f.RecipeCategories))
	for _, c := range f.RecipeCategories {
		recipeCategories.add(c.Name)
	}
	suppliers := nameSet(len(f.Suppliers))
	for _, s := range f.Suppliers {
		suppliers.add(s.Name)
	}

	ingredients := nameSet(len(f.Ingredients))
	for _, ing := range f.Ingredients {
		if ing.Category != "" && !categories.has(ing.Category) {
			return fmt.Errorf("ingredient %q: unknown category %q", ing.Name, ing.Category)
		}
		if ing.Supplier != "" && !suppliers.has(ing.Supplier) {
			return fmt.Errorf("ingredient %q: unknown supplier %q", ing.Name, ing.Supplier)
		}
		if _, err := parseDecimal(ing.TotalCost); err != nil {
			return fmt.Errorf("ingredient %q: total_cost: %w", ing.Name, err)
		}
		if _, err := parseDecimal(ing.PackageQuantity); err != nil {
			return fmt.Errorf("ingredient %q: package_quantity: %w", ing.Name, err)
		}
		ingredients.add(ing.Name)
	}

	for i, pc := range f.PriceChanges {
		if !ingredients.has(pc.Ingredient) {
			return fmt.Errorf("price change %d: unknown ingredient %q", i, pc.Ingredient)
		}
		if _, err := parseDecimal(pc.NewPrice); err != nil {
			return fmt.Errorf("price change %d: new_price: %w", i, err)
		}
		if _, err := parseDate(pc.EffectiveDate); err != nil {
			return fmt.Errorf("price change %d: effective_date: %w", i, err)
		}
	}

	for _, r := range f.Recipes {
		if !recipeCategories.has(r.Category) {
			return fmt.Errorf("recipe %q: unknown recipe category %q", r.Name, r.Category)
		}
		if _, err := parseDecimal(r.SuggestedPrice); err != nil {
			return fmt.Errorf("recipe %q: suggested_price: %w", r.Name, err)
		}
		for _, line := range r.Lines {
			if !ingredients.has(line.Ingredient) {
				return fmt.Errorf("recipe %q: unknown ingredient %q", r.Name, line.Ingredient)
			}
			if _, err := parseDecimal(line.Quantity); err != nil {
				return fmt.Errorf("recipe %q: quantity of %q: %w", r.Name, line.Ingredient, err)
			}
		}
	}
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// names is a case-insensitive set, matching the stores' unique name rule.
type names map[string]struct{}

func nameSet(n int) names { return make(names, n) }

func (s names) add(name string) { s[normalize(name)] = struct{}{} }

func (s names) has(name string) bool {
	_, ok := s[normalize(name)]
	return ok
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
