package view

import (
	"fmt"
	"slices"

	"github.com/logvision/backend/internal/models"
)

func (c *Controller) newPanelID() string {
	id := fmt.Sprintf("panel-%d", c.nextPanel)
	c.nextPanel++
	return id
}

func (c *Controller) panelIndex(id string) int {
	return slices.IndexFunc(c.panels, func(p models.Panel) bool { return p.ID == id })
}

func (c *Controller) signalIndex(id string) int {
	return slices.IndexFunc(c.signals, func(s models.Signal) bool { return s.ID == id })
}

// AddPanel appends an empty panel.
func (c *Controller) AddPanel() (models.Panel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.signals) == 0 {
		return models.Panel{}, ErrNoSeries
	}
	p := models.Panel{ID: c.newPanelID(), Signals: []string{}}
	c.panels = append(c.panels, p)
	c.publish()
	return p, nil
}

// RemovePanel deletes a panel. The last panel cannot be removed.
func (c *Controller) RemovePanel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.panelIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPanel, id)
	}
	if len(c.panels) == 1 {
		return ErrLastPanel
	}
	c.panels = slices.Delete(slices.Clone(c.panels), i, i+1)
	c.publish()
	return nil
}

// AddSignalToPanel shows a signal on a panel. Adding it twice is a no-op.
func (c *Controller) AddSignalToPanel(panelID, signalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.panelIndex(panelID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPanel, panelID)
	}
	if c.signalIndex(signalID) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSignal, signalID)
	}
	if slices.Contains(c.panels[i].Signals, signalID) {
		return nil
	}
	panels := clonePanels(c.panels)
	panels[i].Signals = append(panels[i].Signals, signalID)
	c.panels = panels
	c.publish()
	return nil
}

// RemoveSignalFromPanel takes a signal off a panel.
func (c *Controller) RemoveSignalFromPanel(panelID, signalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.panelIndex(panelID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPanel, panelID)
	}
	j := slices.Index(c.panels[i].Signals, signalID)
	if j < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSignal, signalID)
	}
	panels := clonePanels(c.panels)
	panels[i].Signals = slices.Delete(panels[i].Signals, j, j+1)
	c.panels = panels
	c.publish()
	return nil
}

// ToggleSignalVisibility flips whether a signal is drawn. It returns the
// new visibility.
func (c *Controller) ToggleSignalVisibility(signalID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.signalIndex(signalID)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownSignal, signalID)
	}
	signals := slices.Clone(c.signals)
	signals[i].Visible = !signals[i].Visible
	c.signals = signals
	c.publish()
	return signals[i].Visible, nil
}

func clonePanels(panels []models.Panel) []models.Panel {
	if panels == nil {
		return nil
	}
	out := make([]models.Panel, len(panels))
	for i, p := range panels {
		out[i] = models.Panel{ID: p.ID, Signals: slices.Clone(p.Signals)}
	}
	return out
}
