package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"restosite/sections"
)

// SectionsSavedHook adapts a Publisher to sections.Store.OnSaved. The event
// is published in the background and never fails the save; errors are only
// logged.
func SectionsSavedHook(pub Publisher, log *zap.Logger) sections.SavedHook {
	return func(ctx context.Context, tenantID string, snap sections.Snapshot) {
		ids := make([]string, len(snap.Sections))
		for i, s := range snap.Sections {
			ids[i] = s.ID
		}
		event := SectionsSaved{
			TenantID:  tenantID,
			Revision:  snap.Revision,
			Sections:  len(snap.Sections),
			SectionID: ids,
			SavedAt:   time.Now().UTC(),
		}
		ctx = context.WithoutCancel(ctx)
		go func() {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := pub.PublishSectionsSaved(ctx, event); err != nil {
				log.Warn("publishing sections.saved failed",
					zap.String("tenant", tenantID), zap.Int64("revision", event.Revision), zap.Error(err))
			}
		}()
	}
}
