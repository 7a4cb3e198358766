package models

// Identity is an authenticated player. It is created once per successful
// auth message and never mutated afterwards.
type Identity struct {
	ID         string
	Name       string
	UnlockHash string
	// Stakes maps a deck name to the highest stake unlocked on it.
	Stakes map[string]int
}

// CanPlay reports whether the identity has unlocked stake on deck. The first
// stake is always available.
func (p Identity) CanPlay(deck string, stake int) bool {
	if stake <= 1 {
		return true
	}
	return p.Stakes[deck] >= stake
}

// DisplayName falls back to the id when no name was supplied.
func (p Identity) DisplayName() string {
	if p.Name == "" {
		return p.ID
	}
	return p.Name
}
