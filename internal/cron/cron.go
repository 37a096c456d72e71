// Package cron runs the reconciliation jobs that close the gaps the
// event-driven path leaves behind.
package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forgeline/porter/internal/config"
	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/repository"
	"github.com/forgeline/porter/internal/service"
)

type Scheduler struct {
	cron     *cron.Cron
	config   *config.Config
	repos    *repository.Repositories
	platform platform.Client
	services *service.Services
}

func NewScheduler(cfg *config.Config, repos *repository.Repositories, client platform.Client, services *service.Services) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		config:   cfg,
		repos:    repos,
		platform: client,
		services: services,
	}
}

// Start registers the jobs and launches the scheduler. The roster sweep
// also runs once immediately so a restart starts from a reconciled state.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.idleKickSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 */6 * * *", s.rosterSweep); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("[Cron] ✅ Scheduler started")

	go s.rosterSweep()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Cron] Scheduler stopped")
}

// RunRosterSweep triggers the roster sweep outside its schedule, used by
// the admin API.
func (s *Scheduler) RunRosterSweep() {
	go s.rosterSweep()
}

// idleKickSweep removes strangers who sat on their application past the
// configured timeout without ever touching the questionnaire.
func (s *Scheduler) idleKickSweep() {
	ctx := context.Background()

	for guildID, guildConfig := range s.config.Guilds {
		timeout := guildConfig.IdleKickTimeout.Std()
		if timeout <= 0 {
			continue
		}

		cutoff := time.Now().UTC().Add(-timeout)
		stale, err := s.repos.Members.FindStale(ctx, guildID, cutoff)
		if err != nil {
			log.Printf("[Cron] ❌ Stale query for guild %s failed: %v", guildID, err)
			continue
		}

		for _, member := range stale {
			s.autoKick(ctx, member)
		}
	}
}

// autoKick stamps the record before touching the platform: a crash between
// the two steps must not leave the member eligible for the next sweep.
func (s *Scheduler) autoKick(ctx context.Context, member *repository.GuildMember) {
	now := time.Now().UTC()
	member.AutoKickedAt = &now
	if err := s.repos.Members.Save(ctx, member); err != nil {
		log.Printf("[Cron] Failed to stamp auto-kick for %s: %v", member, err)
		return
	}

	log.Printf("[Cron] ⏱️ Auto-kicking idle stranger %s", member)
	if err := s.platform.KickMember(ctx, member.GuildID, member.MemberID, "Onboarding timed out"); err != nil {
		log.Printf("[Cron] Auto-kick of %s failed: %v", member, err)
	}
}

func (s *Scheduler) rosterSweep() {
	if err := s.services.Onboarding.SyncGuilds(context.Background()); err != nil {
		log.Printf("[Cron] ❌ Roster sweep failed: %v", err)
	}
}
