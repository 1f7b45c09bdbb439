package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"logisim.dev/internal/sim/props"
)

func TestLoadConfigs(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ore, err := c.Item("ore")
	if err != nil {
		t.Fatalf("Item(ore): %v", err)
	}
	if ore.Code != 2 || ore.Props != props.RawMaterial|props.Solid|props.Ore {
		t.Fatalf("ore=%+v", ore)
	}
	if any, ok := c.ItemByCode(AnyCode); !ok || any.ID != "any" {
		t.Fatalf("ItemByCode(0)=%+v ok=%v", any, ok)
	}
	if got := c.ItemName(999); got != "#999" {
		t.Fatalf("ItemName(999)=%q", got)
	}
	if _, ok := c.Recipes.ByID["widget_press"]; !ok {
		t.Fatalf("missing widget_press recipe")
	}
	conv, ok := c.Machines.ByID["conveyor_1"]
	if !ok || !conv.Transporter || conv.Length != 4 {
		t.Fatalf("conveyor_1=%+v ok=%v", conv, ok)
	}
	if c.Items.Digest == "" || c.Recipes.Digest == "" || c.Machines.Digest == "" {
		t.Fatalf("expected catalog digests")
	}
	if len(c.Items.Palette) != len(c.Items.Defs) {
		t.Fatalf("palette=%d defs=%d", len(c.Items.Palette), len(c.Items.Defs))
	}
}

func TestUnknownItemName(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Item("unobtainium"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("Item err=%v, want ErrUnknownItem", err)
	}
}

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func minimalConfigs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "items.json", `[{"id":"any","code":0,"props":[]},{"id":"ore","code":2,"props":["SOLID","ORE"]}]`)
	writeFixture(t, dir, "recipes.json", `[{"id":"crush","inputs":[{"item":"ore","quantity":1}],"outputs":[],"processing_time":1}]`)
	writeFixture(t, dir, "machines.json", `[{"id":"crusher","inputs":[{"props":["SOLID"],"capacity":5}],"outputs":[]}]`)
	return dir
}

func TestLoadFailsOnUnknownRecipeItem(t *testing.T) {
	dir := minimalConfigs(t)
	writeFixture(t, dir, "recipes.json", `[{"id":"crush","inputs":[{"item":"slag","quantity":1}],"outputs":[],"processing_time":1}]`)
	if _, err := Load(dir); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("Load err=%v, want ErrUnknownItem", err)
	}
}

func TestLoadRejectsSchemaViolation(t *testing.T) {
	dir := minimalConfigs(t)
	if _, err := Load(dir); err != nil {
		t.Fatalf("baseline Load: %v", err)
	}
	writeFixture(t, dir, "machines.json", `[{"id":"crusher","inputs":[{"props":["SOLID"],"capacity":5}],"outputs":[],"wheels":4}]`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected schema error for unknown field")
	}
	writeFixture(t, dir, "machines.json", `[{"id":"crusher","inputs":[{"props":["PLASMA"],"capacity":5}],"outputs":[]}]`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected schema error for unknown property name")
	}
}

func TestLoadRejectsDuplicateCodes(t *testing.T) {
	dir := minimalConfigs(t)
	writeFixture(t, dir, "items.json", `[{"id":"any","code":0,"props":[]},{"id":"ore","code":0,"props":["ORE"]}]`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected duplicate code error")
	}
}
