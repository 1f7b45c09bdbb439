package factory

import (
	"errors"
	"fmt"

	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/matching"
	"logisim.dev/internal/sim/props"
)

var (
	ErrUnknownMachine     = errors.New("unknown machine")
	ErrUnknownTemplate    = errors.New("unknown machine template")
	ErrUnknownRecipe      = errors.New("unknown recipe")
	ErrIncompatibleRecipe = errors.New("recipe incompatible with machine ports")
	ErrNoFreePort         = errors.New("no compatible free port pair")
	ErrBadQuantity        = errors.New("quantity must be positive")
)

// RecordedOp is a construction call as written to the tick log, so replays
// can re-apply it before the tick it preceded.
type RecordedOp struct {
	Op       string  `json:"op"`
	Machine  uint32  `json:"machine,omitempty"`
	Target   uint32  `json:"target,omitempty"`
	Template string  `json:"template,omitempty"`
	Recipe   string  `json:"recipe,omitempty"`
	Item     string  `json:"item,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Disabled bool    `json:"disabled,omitempty"`
}

const (
	OpCreate  = "CREATE"
	OpAssign  = "ASSIGN_RECIPE"
	OpConnect = "CONNECT"
	OpDestroy = "DESTROY"
	OpDisable = "SET_DISABLED"
	OpInject  = "INJECT"
)

// CreateMachine instantiates a template and optionally binds a recipe. Nothing
// is allocated when the recipe cannot be bound.
func (f *Factory) CreateMachine(template, recipe string) (model.MachineID, error) {
	def, ok := f.catalogs.Machines.ByID[template]
	if !ok {
		return model.NoMachine, fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
	m := newMachine(def)
	if recipe != "" {
		r, err := f.buildRecipe(m, recipe)
		if err != nil {
			return model.NoMachine, err
		}
		applyRecipe(m, r)
	}

	id := model.MachineID(len(f.machines))
	m.ID = id
	f.machines = append(f.machines, m)

	f.record(RecordedOp{Op: OpCreate, Machine: uint32(id), Template: template, Recipe: recipe})
	f.audit("CREATE_MACHINE", id, "", map[string]any{"template": template, "recipe": recipe})
	return id, nil
}

func newMachine(def catalogs.MachineDef) *model.Machine {
	m := &model.Machine{
		Template:         def.ID,
		Class:            def.Class,
		Efficiency:       def.Efficiency,
		Level:            def.Level,
		Quality:          def.Quality,
		PowerType:        def.PowerType,
		PowerConsumption: def.PowerConsumption,
		PowerStorage:     def.PowerStorage,
		Transporter:      def.Transporter,
		Length:           def.Length,
	}
	if m.Efficiency <= 0 {
		m.Efficiency = 1
	}

	next := 1
	addPort := func(pd catalogs.PortDef, dir model.Direction) {
		id := pd.ID
		if id == 0 {
			id = next
		}
		if id >= next {
			next = id + 1
		}
		refr := pd.RefractoryTime
		if refr <= 0 {
			refr = def.RefractoryTime
		}
		qty := pd.RecipeQuantity
		if qty <= 0 {
			qty = 1
		}
		m.Ports = append(m.Ports, model.Port{
			ID:             id,
			Props:          pd.Props,
			Direction:      dir,
			RefractoryTime: refr,
			AssignedType:   model.Unassigned,
			RecipeQuantity: qty,
		})
		if !m.Transporter || len(m.Bins) == 0 {
			m.Bins = append(m.Bins, model.Bin{BinType: pd.Props, Capacity: pd.Capacity})
		}
	}
	for _, pd := range def.Inputs {
		addPort(pd, model.In)
	}
	for _, pd := range def.Outputs {
		addPort(pd, model.Out)
	}
	m.Tags.Set(model.NoRecipe, true)
	// Nothing is stored yet, so a powered machine starts unpowered.
	m.Tags.Set(model.NotPowered, m.PowerType != props.None)
	return m
}

type boundRecipe struct {
	id      string
	time    float64
	inputs  []model.Packet
	outputs []model.Packet
}

// buildRecipe resolves recipe entries into packets and checks that every entry
// can claim its own port on m.
func (f *Factory) buildRecipe(m *model.Machine, recipe string) (boundRecipe, error) {
	def, ok := f.catalogs.Recipes.ByID[recipe]
	if !ok {
		return boundRecipe{}, fmt.Errorf("%w: %s", ErrUnknownRecipe, recipe)
	}
	r := boundRecipe{id: def.ID, time: def.ProcessingTime}
	var err error
	if r.inputs, err = f.packets(def.Inputs); err != nil {
		return boundRecipe{}, fmt.Errorf("recipe %s: %w", recipe, err)
	}
	if r.outputs, err = f.packets(def.Outputs); err != nil {
		return boundRecipe{}, fmt.Errorf("recipe %s: %w", recipe, err)
	}
	if !claimPorts(m.Ports, model.In, r.inputs) || !claimPorts(m.Ports, model.Out, r.outputs) {
		return boundRecipe{}, fmt.Errorf("%w: %s on %s", ErrIncompatibleRecipe, recipe, m.Template)
	}
	return r, nil
}

func (f *Factory) packets(entries []catalogs.IOData) ([]model.Packet, error) {
	out := make([]model.Packet, 0, len(entries))
	for _, e := range entries {
		item, err := f.catalogs.Item(e.Item)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Packet{Type: item.Code, Props: requirementProps(item, e.Props), Quantity: e.Quantity})
	}
	return out, nil
}

// Wildcard entries are defined by their override; concrete items extend their own bits.
func requirementProps(item catalogs.ItemDef, override props.Mask) props.Mask {
	if item.Code == catalogs.AnyCode {
		if override != props.None {
			return override
		}
		return item.Props
	}
	return item.Props | override
}

func claimPorts(ports []model.Port, dir model.Direction, entries []model.Packet) bool {
	used := make([]bool, len(ports))
	for _, e := range entries {
		claimed := false
		for i := range ports {
			if used[i] || ports[i].Direction != dir {
				continue
			}
			if e.Props.Has(ports[i].Props) {
				used[i] = true
				claimed = true
				break
			}
		}
		if !claimed {
			return false
		}
	}
	return true
}

func applyRecipe(m *model.Machine, r boundRecipe) {
	m.RecipeID = r.id
	m.ProcessingTime = r.time
	m.Inputs = r.inputs
	m.Outputs = r.outputs
	m.Processing = false
	m.ProcessTimer = 0
	m.PercentComplete = 0
	m.Tags.Set(model.ProcessingFinished, false)
	m.Tags.Set(model.NoRecipe, len(r.inputs) == 0 && len(r.outputs) == 0)
	for i := range m.Ports {
		p := &m.Ports[i]
		if p.AssignedType == model.Unassigned {
			continue
		}
		if q, ok := entryQuantity(m, p.Direction, p.AssignedType, p.Props); ok {
			p.RecipeQuantity = q
		}
	}
}

// entryQuantity finds the recipe entry a bound port moves.
func entryQuantity(m *model.Machine, dir model.Direction, code int, mask props.Mask) (float64, bool) {
	entries := m.Inputs
	if dir == model.Out {
		entries = m.Outputs
	}
	probe := model.Packet{Type: code, Props: mask}
	for _, e := range entries {
		if matching.MatchesType(probe, e) {
			return e.Quantity, true
		}
	}
	return 0, false
}

func (f *Factory) AssignRecipe(id model.MachineID, recipe string) error {
	m := f.machine(id)
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	r, err := f.buildRecipe(m, recipe)
	if err != nil {
		return err
	}
	applyRecipe(m, r)
	f.record(RecordedOp{Op: OpAssign, Machine: uint32(id), Recipe: recipe})
	f.audit("ASSIGN_RECIPE", id, "", map[string]any{"recipe": recipe})
	return nil
}

// Connect binds the first free Out port on src that the item can leave through
// and that has a partner: a free In port on dst whose requirement the Out port
// satisfies. Out ports without a partner are skipped.
func (f *Factory) Connect(src, dst model.MachineID, item string) error {
	s, d := f.machine(src), f.machine(dst)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, src)
	}
	if d == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, dst)
	}
	it, err := f.catalogs.Item(item)
	if err != nil {
		return err
	}
	if src == dst {
		return fmt.Errorf("%w: machine %d cannot feed itself", ErrNoFreePort, src)
	}

	out, in := freePair(s, d, it.Props)
	if out == nil {
		return fmt.Errorf("%w: %s has no free output for %s", ErrNoFreePort, s.Template, item)
	}
	if in == nil {
		return fmt.Errorf("%w: %s has no free input for %s", ErrNoFreePort, d.Template, item)
	}

	bind(s, out, dst, in.ID, it)
	bind(d, in, src, out.ID, it)

	f.record(RecordedOp{Op: OpConnect, Machine: uint32(src), Target: uint32(dst), Item: item})
	f.audit("CONNECT", src, "", map[string]any{"target": uint32(dst), "item": item, "out_port": out.ID, "in_port": in.ID})
	return nil
}

// freePair scans src's free Out ports in order. out is nil when the item fits
// no free Out port; in is nil when none of them has a free In port on dst.
func freePair(src, dst *model.Machine, supply props.Mask) (out, in *model.Port) {
	var first *model.Port
	for i := range src.Ports {
		p := &src.Ports[i]
		if p.Direction != model.Out || p.Connected != model.NoMachine || !supply.Has(p.Props) {
			continue
		}
		if first == nil {
			first = p
		}
		if peer := freePort(dst, model.In, p.Props); peer != nil {
			return p, peer
		}
	}
	return first, nil
}

func freePort(m *model.Machine, dir model.Direction, supply props.Mask) *model.Port {
	for i := range m.Ports {
		p := &m.Ports[i]
		if p.Direction != dir || p.Connected != model.NoMachine {
			continue
		}
		if supply.Has(p.Props) {
			return p
		}
	}
	return nil
}

func bind(m *model.Machine, p *model.Port, peer model.MachineID, peerPort int, it catalogs.ItemDef) {
	p.Connected = peer
	p.ConnectedPort = peerPort
	p.AssignedType = it.Code
	if q, ok := entryQuantity(m, p.Direction, it.Code, it.Props); ok {
		p.RecipeQuantity = q
	}
}

// Destroy removes a machine and unbinds every port that pointed at it.
func (f *Factory) Destroy(id model.MachineID) error {
	m := f.machine(id)
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	for _, p := range m.Ports {
		peer := f.machine(p.Connected)
		if peer == nil {
			continue
		}
		if pp := peer.Port(p.ConnectedPort); pp != nil && pp.Connected == id {
			pp.Connected = model.NoMachine
			pp.ConnectedPort = 0
			pp.AssignedType = model.Unassigned
		}
	}
	f.machines[id] = nil
	f.record(RecordedOp{Op: OpDestroy, Machine: uint32(id)})
	f.audit("DESTROY", id, "", nil)
	return nil
}

func (f *Factory) SetDisabled(id model.MachineID, disabled bool) error {
	m := f.machine(id)
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	m.Disabled = disabled
	f.record(RecordedOp{Op: OpDisable, Machine: uint32(id), Disabled: disabled})
	f.audit("SET_DISABLED", id, "", map[string]any{"disabled": disabled})
	return nil
}

// Inject seeds storage with qty of item.
func (f *Factory) Inject(id model.MachineID, item string, qty float64) error {
	m := f.machine(id)
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: %g", ErrBadQuantity, qty)
	}
	it, err := f.catalogs.Item(item)
	if err != nil {
		return err
	}
	m.Storage = append(m.Storage, model.Packet{Type: it.Code, Props: it.Props, Quantity: qty})
	f.record(RecordedOp{Op: OpInject, Machine: uint32(id), Item: item, Quantity: qty})
	f.audit("INJECT", id, "", map[string]any{"item": item, "quantity": qty})
	return nil
}

func (f *Factory) record(op RecordedOp) { f.ops = append(f.ops, op) }

// Apply re-runs a recorded op. Creates must reproduce the recorded id.
func (f *Factory) Apply(op RecordedOp) error {
	switch op.Op {
	case OpCreate:
		id, err := f.CreateMachine(op.Template, op.Recipe)
		if err != nil {
			return err
		}
		if uint32(id) != op.Machine {
			return fmt.Errorf("create %s: got id %d, recorded %d", op.Template, id, op.Machine)
		}
		return nil
	case OpAssign:
		return f.AssignRecipe(model.MachineID(op.Machine), op.Recipe)
	case OpConnect:
		return f.Connect(model.MachineID(op.Machine), model.MachineID(op.Target), op.Item)
	case OpDestroy:
		return f.Destroy(model.MachineID(op.Machine))
	case OpDisable:
		return f.SetDisabled(model.MachineID(op.Machine), op.Disabled)
	case OpInject:
		return f.Inject(model.MachineID(op.Machine), op.Item, op.Quantity)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}
