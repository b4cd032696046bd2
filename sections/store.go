package sections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"restosite/models"
)

// SavedHook runs after a list was stored.
type SavedHook func(ctx context.Context, tenantID string, snap Snapshot)

// ChangeHook runs after anything shown on the tenant's page changed: the list
// or a section's content.
type ChangeHook func(ctx context.Context, tenantID string)

// Store is the database-backed Adapter. Saves are compare-and-swap on the
// tenant's revision.
type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	newID IDFunc

	mu      sync.RWMutex
	hooks   []SavedHook
	changed []ChangeHook
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log, newID: NewID}
}

func (s *Store) OnSaved(hook SavedHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

func (s *Store) OnChanged(hook ChangeHook) {
	s.mu.Lock()
	s.changed = append(s.changed, hook)
	s.mu.Unlock()
}

func (s *Store) notifyChanged(ctx context.Context, tenantID string) {
	s.mu.RLock()
	hooks := append([]ChangeHook(nil), s.changed...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, tenantID)
	}
}

// Fetch returns the stored list, or the default template at revision 0 for a
// tenant that never saved.
func (s *Store) Fetch(ctx context.Context, tenantID string) (Snapshot, error) {
	db := s.db.WithContext(ctx)

	// Find leaves state zero for a tenant that never saved.
	var state models.SectionListState
	if err := db.Where("tenant_id = ?", tenantID).Limit(1).Find(&state).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load section state: %w", err)
	}

	var records []models.SectionRecord
	if err := db.Where("tenant_id = ?", tenantID).Order("position ASC").Find(&records).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load sections: %w", err)
	}

	list := make(List, 0, len(records))
	for _, r := range records {
		list = append(list, Section{
			ID:       r.SectionID,
			Name:     r.Name,
			Kind:     Kind(r.Kind),
			IsLocked: r.IsLocked,
			Priority: r.Priority,
		})
	}
	if len(list) == 0 {
		list = DefaultList()
	}
	return Snapshot{Revision: state.Revision, Sections: Prepare(list, s.newID)}, nil
}

func (s *Store) Save(ctx context.Context, tenantID string, snap Snapshot) (Snapshot, error) {
	list := Prepare(snap.Sections, s.newID)
	if err := Check(list); err != nil {
		return Snapshot{}, err
	}

	next := snap.Revision + 1
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state models.SectionListState
		res := tx.Where("tenant_id = ?", tenantID).Limit(1).Find(&state)
		switch {
		case res.Error != nil:
			return res.Error
		case res.RowsAffected == 0:
			if snap.Revision != 0 {
				return fmt.Errorf("%w: sent %d, stored 0", ErrStaleRevision, snap.Revision)
			}
			state = models.SectionListState{TenantID: tenantID}
			if err := tx.Create(&state).Error; err != nil {
				return err
			}
		case state.Revision != snap.Revision:
			return fmt.Errorf("%w: sent %d, stored %d", ErrStaleRevision, snap.Revision, state.Revision)
		}

		res = tx.Model(&models.SectionListState{}).
			Where("tenant_id = ? AND revision = ?", tenantID, snap.Revision).
			Updates(map[string]interface{}{"revision": next, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: revision %d was replaced", ErrStaleRevision, snap.Revision)
		}

		if err := tx.Where("tenant_id = ?", tenantID).Delete(&models.SectionRecord{}).Error; err != nil {
			return err
		}
		records := make([]models.SectionRecord, 0, len(list))
		ids := make([]string, 0, len(list))
		for i, sec := range list {
			records = append(records, models.SectionRecord{
				TenantID:  tenantID,
				Position:  i,
				SectionID: sec.ID,
				Name:      sec.Name,
				Kind:      string(sec.Kind),
				IsLocked:  sec.IsLocked,
				Priority:  sec.Priority,
			})
			ids = append(ids, sec.ID)
		}
		if err := tx.Create(&records).Error; err != nil {
			return err
		}

		// content of deleted sections goes with them
		return tx.Where("tenant_id = ? AND section_id NOT IN ?", tenantID, ids).
			Delete(&models.SectionContent{}).Error
	})
	if err != nil {
		return Snapshot{}, err
	}

	stored := Snapshot{Revision: next, Sections: list}
	s.log.Info("section list stored",
		zap.String("tenant", tenantID),
		zap.Int64("revision", next),
		zap.Int("count", len(list)))

	s.mu.RLock()
	hooks := append([]SavedHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, tenantID, stored.Clone())
	}
	s.notifyChanged(ctx, tenantID)
	return stored, nil
}

// Content returns the markdown body of a section, empty when never edited.
func (s *Store) Content(ctx context.Context, tenantID, sectionID string) (string, error) {
	var content models.SectionContent
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND section_id = ?", tenantID, sectionID).
		Limit(1).Find(&content).Error
	if err != nil {
		return "", err
	}
	return content.Body, nil
}

// Contents returns every body of a tenant keyed by section id.
func (s *Store) Contents(ctx context.Context, tenantID string) (map[string]string, error) {
	var rows []models.SectionContent
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.SectionID] = r.Body
	}
	return out, nil
}

// ErrUnknownSection is returned when content is written for a section the
// stored list does not have.
var ErrUnknownSection = errors.New("section not found")

func (s *Store) SetContent(ctx context.Context, tenantID, sectionID, body string) error {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.SectionRecord{}).
		Where("tenant_id = ? AND section_id = ?", tenantID, sectionID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUnknownSection
	}

	var content models.SectionContent
	res := db.Where("tenant_id = ? AND section_id = ?", tenantID, sectionID).Limit(1).Find(&content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		content = models.SectionContent{TenantID: tenantID, SectionID: sectionID}
	}
	content.Body = body
	if err := db.Save(&content).Error; err != nil {
		return err
	}
	s.notifyChanged(ctx, tenantID)
	return nil
}
