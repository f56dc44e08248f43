package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// DefaultCacheTTL bounds configuration staleness between wholesale refreshes.
const DefaultCacheTTL = 5 * time.Minute

type configSnapshot struct {
	teamRoles           map[string]string
	admins              map[string]bool
	teamLeads           map[string][]string
	teamChannels        map[string]string
	personChannels      map[string]string
	teamLogChannels     map[string]string
	teamBacklogChannels map[string]string
	privateChannels     map[string]bool
	userTeams           map[string]string
	statusBoardURL      string
}

// ConfigCache serves configuration lookups from a periodically refreshed
// snapshot of the config records. It is injected everywhere configuration is
// needed; there is no package-global state.
type ConfigCache struct {
	store repository.ConfigStore
	ttl   time.Duration

	mu        sync.RWMutex
	snap      *configSnapshot
	fetchedAt time.Time
}

func NewConfigCache(store repository.ConfigStore, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ConfigCache{store: store, ttl: ttl}
}

// Refresh reloads the whole snapshot from the store.
func (c *ConfigCache) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// refresh rebuilds the snapshot and returns it, so callers are independent of
// a concurrent Invalidate clearing the shared field.
func (c *ConfigCache) refresh(ctx context.Context) (*configSnapshot, error) {
	records, err := c.store.ListConfigRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh config cache: %w", err)
	}

	snap := &configSnapshot{
		teamRoles:           make(map[string]string),
		admins:              make(map[string]bool),
		teamLeads:           make(map[string][]string),
		teamChannels:        make(map[string]string),
		personChannels:      make(map[string]string),
		teamLogChannels:     make(map[string]string),
		teamBacklogChannels: make(map[string]string),
		privateChannels:     make(map[string]bool),
		userTeams:           make(map[string]string),
	}

	for _, rec := range records {
		switch rec.Type {
		case model.RecordTeamRole:
			snap.teamRoles[teamKey(rec.Key)] = rec.Value
		case model.RecordAdmin:
			snap.admins[rec.Key] = true
		case model.RecordTeamLead:
			team := teamKey(rec.Team)
			snap.teamLeads[team] = append(snap.teamLeads[team], rec.Key)
		case model.RecordTeamChannel:
			snap.teamChannels[teamKey(rec.Key)] = rec.Value
		case model.RecordPersonChannel:
			snap.personChannels[rec.Key] = rec.Value
		case model.RecordTeamLogChannel:
			snap.teamLogChannels[teamKey(rec.Key)] = rec.Value
		case model.RecordTeamBacklogChannel:
			snap.teamBacklogChannels[teamKey(rec.Key)] = rec.Value
		case model.RecordPrivateChannel:
			snap.privateChannels[rec.Value] = true
		case model.RecordUserTeam:
			snap.userTeams[rec.Key] = teamKey(rec.Team)
		case model.RecordStatusBoard:
			snap.statusBoardURL = rec.Value
		default:
			log.Printf("[warn] unknown config record type %q", rec.Type)
		}
	}

	c.mu.Lock()
	c.snap = snap
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	log.Printf("[info] config cache refreshed: %d records", len(records))
	return snap, nil
}

// Invalidate drops the snapshot so the next read refetches. Called after
// every configuration write.
func (c *ConfigCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *ConfigCache) data(ctx context.Context) (*configSnapshot, error) {
	c.mu.RLock()
	snap, fetchedAt := c.snap, c.fetchedAt
	c.mu.RUnlock()

	if snap != nil && time.Since(fetchedAt) < c.ttl {
		return snap, nil
	}
	fresh, err := c.refresh(ctx)
	if err != nil {
		// Serve a stale snapshot over failing hard when one exists.
		if snap != nil {
			log.Printf("[warn] serving stale config snapshot: %v", err)
			return snap, nil
		}
		return nil, err
	}
	return fresh, nil
}

func (c *ConfigCache) TeamChannel(ctx context.Context, team string) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.teamChannels[teamKey(team)], nil
}

func (c *ConfigCache) PersonChannel(ctx context.Context, userID string) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.personChannels[userID], nil
}

func (c *ConfigCache) TeamLogChannel(ctx context.Context, team string) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.teamLogChannels[teamKey(team)], nil
}

func (c *ConfigCache) TeamBacklogChannel(ctx context.Context, team string) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.teamBacklogChannels[teamKey(team)], nil
}

func (c *ConfigCache) IsPrivateChannel(ctx context.Context, channelID string) (bool, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return false, err
	}
	return snap.privateChannels[channelID], nil
}

func (c *ConfigCache) TeamRole(ctx context.Context, team string) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.teamRoles[teamKey(team)], nil
}

// UserTeam returns the team a user belongs to, or "" when unassigned.
func (c *ConfigCache) UserTeam(ctx context.Context, userID string) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.userTeams[userID], nil
}

// StatusBoardURL returns the location of the live status board message,
// or "" when no board has been published.
func (c *ConfigCache) StatusBoardURL(ctx context.Context) (string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return "", err
	}
	return snap.statusBoardURL, nil
}

// PersonChannelUsers returns every user with a personal channel, sorted so
// renderings built from it are stable.
func (c *ConfigCache) PersonChannelUsers(ctx context.Context) ([]string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(snap.personChannels))
	for userID := range snap.personChannels {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

// TeamMembers returns the ids of every user mapped to the team.
func (c *ConfigCache) TeamMembers(ctx context.Context, team string) ([]string, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return nil, err
	}
	key := teamKey(team)
	var members []string
	for userID, userTeam := range snap.userTeams {
		if userTeam == key {
			members = append(members, userID)
		}
	}
	return members, nil
}

func (c *ConfigCache) IsAdmin(ctx context.Context, userID string) (bool, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return false, err
	}
	return snap.admins[userID], nil
}

func (c *ConfigCache) IsTeamLead(ctx context.Context, userID, team string) (bool, error) {
	snap, err := c.data(ctx)
	if err != nil {
		return false, err
	}
	for _, lead := range snap.teamLeads[teamKey(team)] {
		if lead == userID {
			return true, nil
		}
	}
	return false, nil
}

func teamKey(team string) string {
	return strings.ToLower(strings.TrimSpace(team))
}
