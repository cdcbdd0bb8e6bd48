package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
)

func (s *Store) GetDeviceSnapshot() (models.DeviceSnapshot, error) {
	var snap models.DeviceSnapshot
	var online int
	var syncedAt string
	err := s.db.QueryRow("SELECT is_online, battery_percent, last_synced_at FROM device WHERE id = 1").
		Scan(&online, &snap.BatteryPercent, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeviceSnapshot{}, fmt.Errorf("device snapshot: %w", storage.ErrNotFound)
	}
	if err != nil {
		return models.DeviceSnapshot{}, err
	}

	snap.IsOnline = online != 0
	snap.LastSyncedAt, err = time.Parse(time.RFC3339, syncedAt)
	if err != nil {
		return models.DeviceSnapshot{}, fmt.Errorf("failed to parse last_synced_at: %w", err)
	}
	return snap, nil
}

func (s *Store) SaveDeviceSnapshot(snap models.DeviceSnapshot) error {
	online := 0
	if snap.IsOnline {
		online = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO device (id, is_online, battery_percent, last_synced_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_online = excluded.is_online,
			battery_percent = excluded.battery_percent,
			last_synced_at = excluded.last_synced_at`,
		online, snap.BatteryPercent, snap.LastSyncedAt.UTC().Format(time.RFC3339),
	)
	return err
}
