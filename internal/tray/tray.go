// Package tray provides a system tray interface showing the live workout.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/formcoach/internal/workout"
)

// Tray represents the system tray application.
type Tray struct {
	target int

	onPause func(paused bool)
	onOpen  func()
	onQuit  func()
	paused  bool
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuPause  *systray.MenuItem
	menuStatus *systray.MenuItem
	pending    string
}

// New creates a new Tray for a workout with the given target.
func New(target int) *Tray {
	return &Tray{target: target}
}

// OnPause sets the callback called when pause/resume is clicked.
func (t *Tray) OnPause(fn func(paused bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnOpen sets the callback called when the dashboard item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("formcoach")
	systray.SetTooltip("formcoach workout trainer")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.statusOrDefault(), "Current workout")
	t.menuStatus.Disable()
	systray.AddSeparator()
	t.menuPause = systray.AddMenuItem("Pause", "Pause or resume counting")
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Finish the workout and quit")

	go func() {
		for {
			select {
			case <-t.menuPause.ClickedCh:
				t.handlePause()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) statusOrDefault() string {
	if t.pending != "" {
		return t.pending
	}
	return "Getting ready..."
}

func (t *Tray) handlePause() {
	t.mu.Lock()
	t.paused = !t.paused
	paused := t.paused
	t.setPauseTitle()
	callback := t.onPause
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(paused)
	}
}

// setPauseTitle must be called with t.mu held.
func (t *Tray) setPauseTitle() {
	if t.menuPause == nil {
		return
	}
	if t.paused {
		t.menuPause.SetTitle("Resume")
	} else {
		t.menuPause.SetTitle("Pause")
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Update shows snap in the tray. Safe to call before the tray is ready.
func (t *Tray) Update(snap workout.Snapshot) {
	line := StatusLine(snap, t.target)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = line
	t.paused = snap.State == workout.StatePaused
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(line)
		systray.SetTitle(fmt.Sprintf("%d/%d", snap.Count, t.target))
	}
	t.setPauseTitle()
}

// IsPaused returns the pause state last shown in the menu.
func (t *Tray) IsPaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

// StatusLine formats a snapshot for the tray menu, e.g.
// "Squats 4/15 - DOWN" or "Plank 12s/30s - HOLD (manual)".
func StatusLine(snap workout.Snapshot, target int) string {
	info := snap.Kind.Info()
	name := info.Name
	if name == "" {
		name = string(snap.Kind)
	}

	progress := fmt.Sprintf("%d/%d", snap.Count, target)
	if info.TimeBased {
		progress = fmt.Sprintf("%ds/%ds", snap.Count, target)
	}

	line := fmt.Sprintf("%s %s", name, progress)
	switch {
	case snap.State == workout.StatePaused:
		line += " - paused"
	case snap.State == workout.StateClosed:
		line += " - finished"
	case snap.Phase != "":
		line += " - " + string(snap.Phase)
	}
	if snap.Manual {
		line += " (manual)"
	}
	return line
}
