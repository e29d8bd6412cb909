package sync

import (
	gosync "sync"

	"arcane-atlas/messages"
)

// PovView is the point-of-view popup. It holds no map selection at all; it
// renders the latest creature_pov message for its world until dismissed.
type PovView struct {
	worldID string

	mu           gosync.Mutex
	elementID    string
	imageURL     string
	creatureName string
	active       bool
}

// NewPovView creates a POV view for one world.
func NewPovView(worldID string) *PovView {
	return &PovView{worldID: worldID}
}

// HandleTabMessage consumes creature_pov messages and ignores everything
// else.
func (p *PovView) HandleTabMessage(msg messages.BroadcastMessage) {
	if msg.Type != messages.MessageTypeCreaturePOV || msg.WorldID != p.worldID {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elementID = msg.ElementID
	p.imageURL = msg.ImageURL
	p.creatureName = msg.CreatureName
	p.active = true
}

// Current returns the creature being shown, if any.
func (p *PovView) Current() (name, imageURL string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creatureName, p.imageURL, p.active
}

// Dismiss clears the popup.
func (p *PovView) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elementID = ""
	p.imageURL = ""
	p.creatureName = ""
	p.active = false
}
