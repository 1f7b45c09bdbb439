package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	FactoryID string `json:"factory_id"`
	Tick      uint64 `json:"tick"`
	Machines  int    `json:"machines"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRateHz         int `json:"tick_rate_hz"`
	Workers            int `json:"workers"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	// Catalog digests the state was produced against.
	Catalogs CatalogsV1 `json:"catalogs"`

	// NextID is the next machine id to hand out; ids are never reused.
	NextID   uint32      `json:"next_id"`
	Machines []MachineV1 `json:"machines"`
}

type CatalogsV1 struct {
	Items    string `json:"items"`
	Recipes  string `json:"recipes"`
	Machines string `json:"machines"`
}

type MachineV1 struct {
	ID       uint32 `json:"id"`
	Template string `json:"template"`
	Class    string `json:"class,omitempty"`
	RecipeID string `json:"recipe_id,omitempty"`

	Processing   bool    `json:"processing"`
	Disabled     bool    `json:"disabled"`
	ProcessTimer float64 `json:"process_timer"`
	WorkTimer    float64 `json:"work_timer"`

	Efficiency float64 `json:"efficiency"`
	Level      int     `json:"level"`
	Quality    float64 `json:"quality"`

	PowerType        uint32  `json:"power_type"`
	PowerConsumption float64 `json:"power_consumption"`
	PowerStorage     float64 `json:"power_storage"`

	Transporter    bool    `json:"transporter"`
	Length         int     `json:"length"`
	ProcessingTime float64 `json:"processing_time"`

	Ports    []PortV1   `json:"ports"`
	Bins     []BinV1    `json:"bins"`
	Storage  []PacketV1 `json:"storage"`
	Transfer []PacketV1 `json:"transfer,omitempty"`
	Inputs   []PacketV1 `json:"inputs"`
	Outputs  []PacketV1 `json:"outputs"`

	Tags            uint32  `json:"tags"`
	PercentComplete float64 `json:"percent_complete"`
}

type PortV1 struct {
	ID              int     `json:"id"`
	Props           uint32  `json:"props"`
	Direction       uint8   `json:"direction"`
	RefractoryTime  float64 `json:"refractory_time"`
	RefractoryTimer float64 `json:"refractory_timer"`
	AssignedType    int     `json:"assigned_type"`
	RecipeQuantity  float64 `json:"recipe_quantity"`
	Connected       uint32  `json:"connected"`
	ConnectedPort   int     `json:"connected_port"`
}

type BinV1 struct {
	BinType  uint32  `json:"bin_type"`
	Capacity float64 `json:"capacity"`
	Current  float64 `json:"current"`
}

type PacketV1 struct {
	Type     int     `json:"type"`
	Props    uint32  `json:"props"`
	Quantity float64 `json:"quantity"`
	Elapsed  float64 `json:"elapsed,omitempty"`
}

// WriteSnapshot writes a zstd stream holding one JSON header line followed by
// the gob-encoded snapshot.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob payload repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot %s: unsupported version %d", filepath.Base(path), snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
