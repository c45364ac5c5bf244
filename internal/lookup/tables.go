// Package lookup holds the accounting mapping tables maintained by the
// finance team: contract codes and expense accounts keyed by the plan
// category that arrives on each input line. Compiled-in defaults can be
// overridden with a YAML file so table changes do not require a rebuild.
package lookup

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables maps upper-cased plan/adjustment categories to accounting codes.
type Tables struct {
	// ContractCodes resolves the contract dimension from the sub-plan.
	ContractCodes map[string]string `yaml:"contract_codes"`
	// ExpenseAccounts resolves the ledger account from the sub-plan or
	// adjustment type.
	ExpenseAccounts map[string]string `yaml:"expense_accounts"`
	// InventoryAdjustment holds the entry/exit account pair used when the
	// category alone does not decide the direction.
	InventoryAdjustment struct {
		Entry string `yaml:"entry"`
		Exit  string `yaml:"exit"`
	} `yaml:"inventory_adjustment"`
}

// Defaults returns the compiled-in tables.
func Defaults() *Tables {
	t := &Tables{
		ContractCodes: map[string]string{
			"CAPITATED":                    "CAPSUB01",
			"CAPITATED SUBSIDIZED":         "CAPSUB01",
			"CAPITATED SUPPL SUBSIDIZED":   "CAPSUB01",
			"CAPITATED CONTRIBUTORY":       "CAPCON01",
			"CAPITATED SUPPL CONTRIBUTORY": "CAPCON01",
			"EVENT PBS CONTRIBUTORY":       "EVPBSCON",
			"EVENT NON-PBS SUBSIDIZED":     "EVNOPBSS",
			"EVENT NON-PBS CONTRIBUTORY":   "EVPBSCON",
			"EVENT PBS SUBSIDIZED":         "EVPBSSUB",
		},
		ExpenseAccounts: map[string]string{
			"CAPITATED":                    "7165950102",
			"CAPITATED SUBSIDIZED":         "7165950102",
			"CAPITATED SUPPL SUBSIDIZED":   "7165950102",
			"CAPITATED CONTRIBUTORY":       "7165950101",
			"CAPITATED SUPPL CONTRIBUTORY": "7165950101",
			"EVENT PBS CONTRIBUTORY":       "7165950202",
			"EVENT NON-PBS SUBSIDIZED":     "7165950203",
			"EVENT NON-PBS CONTRIBUTORY":   "7165950204",
			"EVENT PBS SUBSIDIZED":         "7165950201",
			"SHORTAGE ADJUSTMENT":          "7165950301",
			"SURPLUS ADJUSTMENT":           "7165950302",
			"DONATION EXIT":                "7165950303",
			"EXPIRED":                      "7165950101",
		},
	}
	t.InventoryAdjustment.Entry = "7165950302"
	t.InventoryAdjustment.Exit = "7165950301"
	return t
}

// Load reads tables from a YAML file, merging over the defaults so a
// partial file only overrides what it names.
func Load(path string) (*Tables, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup tables: %w", err)
	}

	var override Tables
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("failed to parse lookup tables: %w", err)
	}

	for k, v := range override.ContractCodes {
		t.ContractCodes[strings.ToUpper(k)] = v
	}
	for k, v := range override.ExpenseAccounts {
		t.ExpenseAccounts[strings.ToUpper(k)] = v
	}
	if override.InventoryAdjustment.Entry != "" {
		t.InventoryAdjustment.Entry = override.InventoryAdjustment.Entry
	}
	if override.InventoryAdjustment.Exit != "" {
		t.InventoryAdjustment.Exit = override.InventoryAdjustment.Exit
	}

	return t, nil
}

// ContractCode resolves the contract dimension for a sub-plan. The empty
// sub-plan maps to an empty code; an unknown one reports ok=false so the
// caller can register a mapping error.
func (t *Tables) ContractCode(subPlan string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(subPlan))
	if normalized == "" {
		return "", true
	}
	code, ok := t.ContractCodes[normalized]
	return code, ok
}

// ExpenseAccount resolves the ledger account for a category. direction is
// consulted only for the generic inventory-adjustment category, where the
// account depends on whether stock enters or leaves.
func (t *Tables) ExpenseAccount(category, direction string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(category))
	if normalized == "" {
		return "", true
	}
	if normalized == "GENERAL INVENTORY ADJUSTMENT" {
		switch direction {
		case "entry":
			return t.InventoryAdjustment.Entry, true
		case "exit":
			return t.InventoryAdjustment.Exit, true
		}
		return "", false
	}
	account, ok := t.ExpenseAccounts[normalized]
	return account, ok
}
