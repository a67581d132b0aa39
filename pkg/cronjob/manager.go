// Package cronjob schedules background maintenance. The only job today is
// the expired-invitation sweep.
package cronjob

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loomworks/loomspace/pkg/logutils"
)

// SweepStore deletes unused invitations whose expiry passed before the cutoff
// and reports how many rows went away.
type SweepStore interface {
	DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error)
}

type Manager struct {
	store SweepStore
	cron  *cron.Cron
}

func NewManager(store SweepStore) *Manager {
	return &Manager{
		store: store,
		cron:  cron.New(cron.WithLocation(time.Local)),
	}
}

// RegisterInvitationSweep schedules the sweep with the given cron spec.
func (m *Manager) RegisterInvitationSweep(spec string) error {
	_, err := m.cron.AddFunc(spec, m.sweepInvitations)
	return err
}

func (m *Manager) sweepInvitations() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	deleted, err := m.store.DeleteExpiredInvitations(ctx, time.Now())
	if err != nil {
		logutils.Log.Errorf("cronjob: invitation sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		logutils.Log.Infof("cronjob: removed %d expired invitations", deleted)
	}
}

func (m *Manager) Start() { m.cron.Start() }

func (m *Manager) Stop() context.Context { return m.cron.Stop() }
