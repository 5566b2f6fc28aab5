package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/lacylights-go/dmxbridge/internal/core"
)

// GormStore implements DeviceStore on top of GORM, following the same
// find-or-translate-ErrRecordNotFound idiom as the teacher's
// repositories.FixtureRepository.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-connected, already-migrated *gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Mappings(ctx context.Context) ([]MappingRecord, error) {
	var records []MappingRecord
	result := s.db.WithContext(ctx).Order("universe ASC, channel ASC").Find(&records)
	return records, result.Error
}

func (s *GormStore) ManualProbeTargets(ctx context.Context) ([]ManualProbeTarget, error) {
	var devices []Device
	result := s.db.WithContext(ctx).Where("manual = ? AND ip <> ''", true).Find(&devices)
	if result.Error != nil {
		return nil, result.Error
	}
	targets := make([]ManualProbeTarget, 0, len(devices))
	for _, d := range devices {
		targets = append(targets, ManualProbeTarget{DeviceID: d.ID, IP: d.IP, Protocol: d.Protocol})
	}
	return targets, nil
}

func (s *GormStore) PollTargets(ctx context.Context) ([]PollTarget, error) {
	var devices []Device
	result := s.db.WithContext(ctx).Where("enabled = ? AND ip <> ''", true).Find(&devices)
	if result.Error != nil {
		return nil, result.Error
	}
	targets := make([]PollTarget, 0, len(devices))
	for _, d := range devices {
		targets = append(targets, PollTarget{DeviceID: d.ID, IP: d.IP, Protocol: d.Protocol, Port: d.Port})
	}
	return targets, nil
}

func (s *GormStore) RecordDiscovery(ctx context.Context, result DiscoveryResult) error {
	var existing Device
	err := s.db.WithContext(ctx).First(&existing, "id = ?", result.DeviceID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	capsJSON, merr := json.Marshal(result.Capabilities)
	if merr != nil {
		return merr
	}

	if err == gorm.ErrRecordNotFound {
		d := Device{
			ID:           result.DeviceID,
			Protocol:     result.Protocol,
			IP:           result.IP,
			Port:         result.Port,
			Model:        result.Model,
			Discovered:   true,
			Enabled:      true,
			Capabilities: string(capsJSON),
			FirstSeen:    time.Now(),
			LastSeen:     time.Now(),
		}
		return s.db.WithContext(ctx).Create(&d).Error
	}

	// Rediscovery: preserve user-owned Enabled and sticky Configured.
	existing.IP = result.IP
	existing.Port = result.Port
	existing.Model = result.Model
	existing.Discovered = true
	existing.Capabilities = string(capsJSON)
	existing.LastSeen = time.Now()
	existing.Offline = false
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *GormStore) RecordPollSuccess(ctx context.Context, deviceID string, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Device{}).Where("id = ?", deviceID).Updates(map[string]any{
		"offline":            false,
		"poll_failure_count": 0,
		"poll_last_success":  &now,
		"poll_state":         string(stateJSON),
		"last_seen":          now,
	}).Error
}

func (s *GormStore) RecordPollFailure(ctx context.Context, deviceID string, offlineThreshold int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d Device
		if err := tx.First(&d, "id = ?", deviceID).Error; err != nil {
			return err
		}
		now := time.Now()
		d.PollFailureCount++
		d.PollLastFailure = &now
		if d.PollFailureCount >= offlineThreshold {
			d.Offline = true
		}
		return tx.Save(&d).Error
	})
}

func (s *GormStore) EnqueueState(ctx context.Context, update core.DeviceStateUpdate) error {
	pending := PendingUpdate{
		ID:        cuid.New(),
		DeviceID:  update.DeviceID,
		Payload:   CommandColumn{Command: update.Payload},
		ContextID: update.ContextID,
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(&pending).Error
}

func (s *GormStore) PendingDeviceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	result := s.db.WithContext(ctx).Model(&PendingUpdate{}).Distinct().Pluck("device_id", &ids)
	return ids, result.Error
}

func (s *GormStore) PopNextFor(ctx context.Context, deviceID string) (*core.DeviceStateUpdate, error) {
	var update *core.DeviceStateUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending PendingUpdate
		err := tx.Where("device_id = ?", deviceID).Order("created_at ASC").First(&pending).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&pending).Error; err != nil {
			return err
		}
		update = &core.DeviceStateUpdate{
			DeviceID:  pending.DeviceID,
			Payload:   pending.Payload.Command,
			ContextID: pending.ContextID,
		}
		return nil
	})
	return update, err
}

func (s *GormStore) MarkStale(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return s.db.WithContext(ctx).Model(&Device{}).
		Where("discovered = ? AND manual = ? AND last_seen < ?", true, false, cutoff).
		Update("offline", true).Error
}

func (s *GormStore) DeadLetter(ctx context.Context, deviceID string, payload core.DeviceCommand, reason string) error {
	dl := DeadLetter{
		ID:        cuid.New(),
		DeviceID:  deviceID,
		Payload:   CommandColumn{Command: payload},
		Reason:    reason,
		Attempts:  0,
		FirstSeen: time.Now(),
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(&dl).Error
}

func (s *GormStore) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var d Device
	result := s.db.WithContext(ctx).First(&d, "id = ?", deviceID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrDeviceNotFound
		}
		return nil, result.Error
	}
	return &d, nil
}
