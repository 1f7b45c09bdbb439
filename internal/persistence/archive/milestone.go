package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"logisim.dev/internal/persistence/snapshot"
)

type MilestoneMeta struct {
	Milestone int                 `json:"milestone"`
	Tick      uint64              `json:"tick"`
	FactoryID string              `json:"factory_id"`
	Machines  int                 `json:"machines"`
	Snapshot  string              `json:"snapshot"`
	Catalogs  snapshot.CatalogsV1 `json:"catalogs"`
	CreatedAt string              `json:"created_at"`
}

// ArchiveMilestone copies a snapshot into `factoryDir/archives/milestone_<NNN>/`
// when its tick is a positive multiple of everyTicks. Regular snapshots may be
// pruned; milestones are kept.
func ArchiveMilestone(factoryDir, snapshotPath string, snap snapshot.SnapshotV1, everyTicks int) (milestone int, archivedPath string, archived bool, err error) {
	if everyTicks <= 0 || snap.Header.Tick == 0 {
		return 0, "", false, nil
	}
	every := uint64(everyTicks)
	// Header.Tick is the next tick to run, so the milestone lands exactly on the boundary.
	if snap.Header.Tick%every != 0 {
		return 0, "", false, nil
	}
	milestone = int(snap.Header.Tick / every)

	archiveDir := filepath.Join(factoryDir, "archives", fmt.Sprintf("milestone_%03d", milestone))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := MilestoneMeta{
		Milestone: milestone,
		Tick:      snap.Header.Tick,
		FactoryID: snap.Header.FactoryID,
		Machines:  len(snap.Machines),
		Snapshot:  filepath.Base(dst),
		Catalogs:  snap.Catalogs,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return milestone, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
