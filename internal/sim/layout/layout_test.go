package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/sim/factory/kernel/model"
)

func TestApplyLayoutYAML(t *testing.T) {
	l, err := Load("../../../configs/layout.yaml")
	if err != nil {
		t.Fatalf("load layout.yaml: %v", err)
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	f := factory.New(factory.Config{Workers: 2}, cats)
	ids, err := l.Apply(f)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(ids) != len(l.Machines) || f.MachineCount() != len(l.Machines) {
		t.Fatalf("ids=%v count=%d", ids, f.MachineCount())
	}
	spare, ok := f.Machine(ids["spare_gen"])
	if !ok || !spare.Disabled || len(spare.Storage) != 1 {
		t.Fatalf("spare_gen=%+v", spare)
	}
	belt, _ := f.Machine(ids["belt"])
	for _, p := range belt.Ports {
		if p.Connected == model.NoMachine {
			t.Fatalf("belt port %d left unconnected", p.ID)
		}
	}
}

type recorder struct {
	next    model.MachineID
	calls   []string
	failOn  string
	failErr error
}

func (r *recorder) CreateMachine(template, recipe string) (model.MachineID, error) {
	if template == r.failOn {
		return model.NoMachine, r.failErr
	}
	r.next++
	r.calls = append(r.calls, "create:"+template)
	return r.next, nil
}

func (r *recorder) Connect(src, dst model.MachineID, item string) error {
	r.calls = append(r.calls, "connect:"+item)
	return nil
}

func (r *recorder) SetDisabled(id model.MachineID, disabled bool) error {
	r.calls = append(r.calls, "disable")
	return nil
}

func (r *recorder) Inject(id model.MachineID, item string, qty float64) error {
	r.calls = append(r.calls, "inject:"+item)
	return nil
}

func TestApplyOrder(t *testing.T) {
	l := Layout{
		Machines: []MachineSpec{
			{Name: "a", Template: "t1", Disabled: true},
			{Name: "b", Template: "t2"},
		},
		Connections: []ConnectionSpec{{From: "a", To: "b", Item: "ore"}},
		Seeds:       []SeedSpec{{Machine: "b", Item: "ore", Quantity: 1}},
	}
	r := &recorder{}
	ids, err := l.Apply(r)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"create:t1", "create:t2", "connect:ore", "inject:ore", "disable"}
	if len(r.calls) != len(want) {
		t.Fatalf("calls=%v want %v", r.calls, want)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("calls=%v want %v", r.calls, want)
		}
	}
	if ids["a"] != 1 || ids["b"] != 2 {
		t.Fatalf("ids=%v", ids)
	}
}

func TestApplyStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	l := Layout{
		Machines: []MachineSpec{
			{Name: "a", Template: "t1"},
			{Name: "b", Template: "bad"},
			{Name: "c", Template: "t3"},
		},
	}
	r := &recorder{failOn: "bad", failErr: boom}
	ids, err := l.Apply(r)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if len(ids) != 1 || len(r.calls) != 1 {
		t.Fatalf("ids=%v calls=%v", ids, r.calls)
	}
}

func TestApplyUnknownRecipeFails(t *testing.T) {
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	l := Layout{Machines: []MachineSpec{{Name: "m", Template: "miner_1", Recipe: "nope"}}}
	_, err = l.Apply(factory.New(factory.Config{}, cats))
	if !errors.Is(err, factory.ErrUnknownRecipe) {
		t.Fatalf("err=%v want ErrUnknownRecipe", err)
	}
}

func TestLoadRejectsUnknownConnectionEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	body := "machines:\n  - {name: a, template: miner_1}\nconnections:\n  - {from: a, to: ghost, item: ore}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	l := Layout{Machines: []MachineSpec{{Name: "a", Template: "x"}, {Name: "a", Template: "y"}}}
	if err := l.Validate(); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}
