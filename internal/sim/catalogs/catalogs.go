package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"logisim.dev/internal/sim/props"
)

// AnyCode is the item code used by recipe inputs that match by properties only.
const AnyCode = 0

var ErrUnknownItem = errors.New("unknown item")

//go:embed schema/*.schema.json
var schemaFS embed.FS

type Catalogs struct {
	Items    ItemCatalog
	Recipes  RecipeCatalog
	Machines MachineCatalog
}

type ItemCatalog struct {
	Palette []string
	Defs    map[string]ItemDef
	ByCode  map[int]string
	Digest  string
}

type ItemDef struct {
	ID          string     `json:"id"`
	Code        int        `json:"code"`
	Props       props.Mask `json:"props"`
	Icon        string     `json:"icon,omitempty"`
	Prefab      string     `json:"prefab,omitempty"`
	Description string     `json:"description,omitempty"`
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	ID             string   `json:"id"`
	Inputs         []IOData `json:"inputs"`
	Outputs        []IOData `json:"outputs"`
	ProcessingTime float64  `json:"processing_time"`
}

// IOData is one recipe input or output. Props is an override: for a
// wildcard input it defines the requirement, otherwise it is OR-ed onto the
// item's own properties.
type IOData struct {
	Item     string     `json:"item"`
	Quantity float64    `json:"quantity"`
	Props    props.Mask `json:"props,omitempty"`
}

type MachineCatalog struct {
	ByID   map[string]MachineDef
	Digest string
}

type MachineDef struct {
	ID               string     `json:"id"`
	Class            string     `json:"class,omitempty"`
	Efficiency       float64    `json:"efficiency,omitempty"`
	Level            int        `json:"level,omitempty"`
	Quality          float64    `json:"quality,omitempty"`
	Inputs           []PortDef  `json:"inputs"`
	Outputs          []PortDef  `json:"outputs"`
	Transporter      bool       `json:"transporter,omitempty"`
	Length           int        `json:"length,omitempty"`
	RefractoryTime   float64    `json:"refractory_time,omitempty"`
	PowerType        props.Mask `json:"power_type,omitempty"`
	PowerConsumption float64    `json:"power_consumption,omitempty"`
	PowerStorage     float64    `json:"power_storage,omitempty"`
}

// PortDef declares one port and the storage bin that backs it.
type PortDef struct {
	ID             int        `json:"id,omitempty"`
	Props          props.Mask `json:"props"`
	Capacity       float64    `json:"capacity"`
	RecipeQuantity float64    `json:"recipe_quantity,omitempty"`
	RefractoryTime float64    `json:"refractory_time,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadMachines(filepath.Join(configDir, "machines.json"), &c.Machines); err != nil {
		return nil, err
	}
	if err := c.checkRecipeItems(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Item resolves an item name. Missing names are configuration errors.
func (c *Catalogs) Item(name string) (ItemDef, error) {
	d, ok := c.Items.Defs[name]
	if !ok {
		return ItemDef{}, fmt.Errorf("%w: %s", ErrUnknownItem, name)
	}
	return d, nil
}

func (c *Catalogs) ItemByCode(code int) (ItemDef, bool) {
	name, ok := c.Items.ByCode[code]
	if !ok {
		return ItemDef{}, false
	}
	return c.Items.Defs[name], true
}

// ItemName returns the item name for a code, or "#<code>" when unknown.
func (c *Catalogs) ItemName(code int) string {
	if name, ok := c.Items.ByCode[code]; ok {
		return name
	}
	return fmt.Sprintf("#%d", code)
}

func (c *Catalogs) checkRecipeItems() error {
	ids := make([]string, 0, len(c.Recipes.ByID))
	for id := range c.Recipes.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := c.Recipes.ByID[id]
		for _, io := range append(append([]IOData(nil), r.Inputs...), r.Outputs...) {
			if _, err := c.Item(io.Item); err != nil {
				return fmt.Errorf("recipes.json: recipe %s: %w", id, err)
			}
		}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readValidated reads a catalog file and validates it against its embedded schema.
func readValidated(path, schemaName string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src, err := schemaFS.ReadFile("schema/" + schemaName)
	if err != nil {
		return nil, err
	}
	schema, err := jsonschema.CompileString(schemaName, string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: compile schema: %w", schemaName, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := readValidated(path, "items.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	out.ByCode = map[int]string{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %s", d.ID)
		}
		if other, dup := out.ByCode[d.Code]; dup {
			return fmt.Errorf("items.json: code %d used by %s and %s", d.Code, other, d.ID)
		}
		out.Defs[d.ID] = d
		out.ByCode[d.Code] = d.ID
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadRecipes(path string, out *RecipeCatalog) error {
	raw, err := readValidated(path, "recipes.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	for _, r := range defs {
		if _, dup := out.ByID[r.ID]; dup {
			return fmt.Errorf("recipes.json: duplicate id %s", r.ID)
		}
		out.ByID[r.ID] = r
	}
	return nil
}

func loadMachines(path string, out *MachineCatalog) error {
	raw, err := readValidated(path, "machines.schema.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []MachineDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("machines.json: %w", err)
	}
	out.ByID = map[string]MachineDef{}
	for _, m := range defs {
		if _, dup := out.ByID[m.ID]; dup {
			return fmt.Errorf("machines.json: duplicate id %s", m.ID)
		}
		if m.Transporter && len(m.Inputs)+len(m.Outputs) == 0 {
			return fmt.Errorf("machines.json: transporter %s has no ports", m.ID)
		}
		out.ByID[m.ID] = m
	}
	return nil
}
