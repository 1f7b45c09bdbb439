package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"logisim.dev/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "list":
			listCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "command":
			commandCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	factoryID := fs.String("factory", "", "factory id (optional; lists its snapshots)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "factories")
	if *factoryID != "" {
		base = filepath.Join(base, *factoryID, "snapshots")
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// inspectCmd prints a snapshot header and one line per machine.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	factoryID := fs.String("factory", "plant_1", "factory id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = latestSnapshot(filepath.Join(*dataDir, "factories", *factoryID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(snap.Header)
	for _, row := range summarize(snap) {
		printJSON(row)
	}
}

type machineSummary struct {
	ID         uint32  `json:"id"`
	Template   string  `json:"template"`
	Recipe     string  `json:"recipe,omitempty"`
	Processing bool    `json:"processing"`
	Disabled   bool    `json:"disabled,omitempty"`
	Tags       uint32  `json:"tags"`
	Stored     float64 `json:"stored"`
	InTransit  float64 `json:"in_transit"`
	Connected  []int   `json:"connected,omitempty"`
}

func summarize(snap snapshot.SnapshotV1) []machineSummary {
	out := make([]machineSummary, 0, len(snap.Machines))
	for _, m := range snap.Machines {
		s := machineSummary{
			ID:         m.ID,
			Template:   m.Template,
			Recipe:     m.RecipeID,
			Processing: m.Processing,
			Disabled:   m.Disabled,
			Tags:       m.Tags,
		}
		for _, p := range m.Storage {
			s.Stored += p.Quantity
		}
		for _, p := range m.Transfer {
			s.InTransit += p.Quantity
		}
		for _, p := range m.Ports {
			if p.Connected != 0 {
				s.Connected = append(s.Connected, int(p.Connected))
			}
		}
		sort.Ints(s.Connected)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func latestSnapshot(factoryDir string) string {
	dir := filepath.Join(factoryDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
