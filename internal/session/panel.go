package session

import "sync"

// Panel identifies the auxiliary panel next to the stage.
type Panel string

const (
	PanelNone   Panel = ""
	PanelChat   Panel = "chat"
	PanelPeople Panel = "people"
	PanelInfo   Panel = "info"
)

// DefaultPanelWidth is the horizontal space an open panel reserves so the
// stage controls are not obscured.
const DefaultPanelWidth = 360

// PanelState keeps exactly one of {none, chat, people, info} visible.
// Selecting the open panel again closes it; selecting another switches
// directly, with no intermediate closed state.
type PanelState struct {
	mu     sync.Mutex
	active Panel
	widths map[Panel]int
}

func NewPanelState() *PanelState {
	return &PanelState{
		widths: map[Panel]int{
			PanelChat:   DefaultPanelWidth,
			PanelPeople: DefaultPanelWidth,
			PanelInfo:   DefaultPanelWidth,
		},
	}
}

// Toggle applies the selection and returns the now-active panel.
func (p *PanelState) Toggle(panel Panel) Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == panel {
		p.active = PanelNone
	} else {
		p.active = panel
	}
	return p.active
}

func (p *PanelState) Active() Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetWidth overrides the reserved width for one panel.
func (p *PanelState) SetWidth(panel Panel, w int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.widths[panel] = w
}

// StageInset is the width the stage must reserve for the open panel;
// zero when no panel is open.
func (p *PanelState) StageInset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == PanelNone {
		return 0
	}
	return p.widths[p.active]
}
