package weapons

import (
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// State is one weapon instance's runtime state. The server owns the
// authoritative copy; the client keeps an optimistic shadow it corrects
// from WeaponStateUpdate and AttackResult.
type State struct {
	ID          protocol.WeaponID
	Magazine    uint16
	Reserve     uint16
	Reloading   bool
	ReloadStart time.Time
	LastFire    time.Time
}

// NewState starts full: ranged weapons get a loaded magazine and a full
// reserve, everything else carries no ammo at all.
func NewState(def *Definition) *State {
	s := &State{ID: def.ID}
	if def.Ranged != nil {
		s.Magazine = def.Ranged.MagazineSize
		s.Reserve = def.Ranged.ReserveMax
	}
	return s
}

// CanFire checks the per-weapon fire interval against the last accepted
// attack.
func (s *State) CanFire(def *Definition, now time.Time) bool {
	if s.Reloading {
		return false
	}
	return s.LastFire.IsZero() || now.Sub(s.LastFire) >= def.MinFireInterval()
}

// StartReload begins a reload if one makes sense right now: ranged weapon,
// magazine not full, reserve not empty, no reload already running.
func (s *State) StartReload(def *Definition, now time.Time) bool {
	if def.Ranged == nil || s.Reloading {
		return false
	}
	if s.Magazine >= def.Ranged.MagazineSize || s.Reserve == 0 {
		return false
	}
	s.Reloading = true
	s.ReloadStart = now
	return true
}

// ReloadDone reports whether a running reload has run its full duration.
func (s *State) ReloadDone(def *Definition, now time.Time) bool {
	return s.Reloading && now.Sub(s.ReloadStart) >= def.Ranged.ReloadDuration()
}

// FinishReload moves rounds from reserve into the magazine and clears the
// reloading flag.
func (s *State) FinishReload(def *Definition) {
	moved := def.Ranged.MagazineSize - s.Magazine
	if moved > s.Reserve {
		moved = s.Reserve
	}
	s.Magazine += moved
	s.Reserve -= moved
	s.Reloading = false
}

// CancelReload drops an in-progress reload without moving rounds. Death
// does this.
func (s *State) CancelReload() {
	s.Reloading = false
}

// ReloadProgress reports how far a running reload has come, in [0, 1].
func (s *State) ReloadProgress(def *Definition, now time.Time) float32 {
	if !s.Reloading || def.Ranged == nil {
		return 0
	}
	total := def.Ranged.ReloadDuration()
	if total <= 0 {
		return 1
	}
	p := float32(now.Sub(s.ReloadStart)) / float32(total)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Update is the owning client's unicast ammo correction.
func (s *State) Update(msg *protocol.WeaponStateUpdate) {
	s.Magazine = msg.CurrentAmmo
	s.Reserve = msg.ReserveAmmo
	s.Reloading = msg.IsReloading
}
