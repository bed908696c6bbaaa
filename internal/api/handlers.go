package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"third-strike/internal/chardef"
	"third-strike/internal/debugdraw"
	"third-strike/internal/game"
	"third-strike/internal/hitbox"
)

// moveInfo is one row of a character's frame data table.
type moveInfo struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Stance     string   `json:"stance"`
	Strength   string   `json:"strength"`
	Buttons    string   `json:"buttons"`
	Motions    []string `json:"motions,omitempty"`
	Startup    int      `json:"startup"`
	Active     int      `json:"active"`
	Recovery   int      `json:"recovery"`
	Total      int      `json:"total"`
	Damage     int      `json:"damage"`
	Hitstun    int      `json:"hitstun"`
	Guard      string   `json:"guard"`
	Invincible []int    `json:"invincible,omitempty"`
	Projectile bool     `json:"projectile"`
}

type characterInfo struct {
	Name  string        `json:"name"`
	Stats chardef.Stats `json:"stats"`
	Moves []moveInfo    `json:"moves"`
}

func describeMove(c *chardef.Character, m *chardef.Move) moveInfo {
	info := moveInfo{
		Name:       m.Name,
		Kind:       m.Kind.String(),
		Stance:     m.Stance.String(),
		Strength:   m.Strength.String(),
		Buttons:    m.Buttons.String(),
		Startup:    m.Window.Startup,
		Active:     m.Window.Active,
		Recovery:   m.Window.Recovery,
		Total:      m.Window.Total,
		Invincible: m.InvincibleFrames(),
		Projectile: m.Projectile != nil,
	}
	for _, mo := range m.Motions {
		info.Motions = append(info.Motions, mo.String())
	}

	// Headline numbers come from the strongest box on the first active frame.
	first := m.Window.FirstActive()
	switch {
	case m.Projectile != nil:
		info.Damage, info.Hitstun, info.Guard = m.Projectile.Box.Damage, m.Projectile.Box.Hitstun, m.Projectile.Box.Guard.String()
	case m.Kind == chardef.Throw:
		if boxes := c.Catalog.Get(m.Animation(), first, hitbox.Grab); len(boxes) > 0 {
			info.Damage = boxes[0].Damage
		}
		info.Guard = hitbox.Throw.String()
	default:
		if boxes := c.Catalog.Get(m.Animation(), first, hitbox.Attack); len(boxes) > 0 {
			info.Damage, info.Hitstun, info.Guard = boxes[0].Damage, boxes[0].Hitstun, boxes[0].Guard.String()
		}
	}
	return info
}

func describeCharacter(c *chardef.Character) characterInfo {
	moves := c.Moves()
	info := characterInfo{Name: c.Name, Stats: c.Stats, Moves: make([]moveInfo, 0, len(moves))}
	for _, m := range moves {
		info.Moves = append(info.Moves, describeMove(c, m))
	}
	return info
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Latest()
	if !ok {
		writeError(w, "no frame simulated yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"ticks":      h.engine.Ticks(),
		"rateLimit":  h.rateLimiter.GetStats(),
		"frameCache": h.frames.Stats(),
	}
	if snap, ok := h.engine.Latest(); ok {
		stats["frame"] = snap.Frame
		stats["round"] = snap.Round
		stats["queueDropped"] = snap.QueueDropped
	}
	if h.eventLog != nil {
		stats["eventLog"] = h.eventLog.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if h.standings == nil {
		writeJSON(w, []game.StandingsEntry{})
		return
	}
	writeJSON(w, h.standings.Top(limit))
}

func (h *routerHandlers) handleGetCharacters(w http.ResponseWriter, r *http.Request) {
	names := h.characters.Names()
	out := make([]characterInfo, 0, len(names))
	for _, name := range names {
		if c, ok := h.characters.Get(name); ok {
			out = append(out, describeCharacter(c))
		}
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	c, ok := h.characters.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, "unknown character", http.StatusNotFound)
		return
	}
	writeJSON(w, describeCharacter(c))
}

// handleMoveFrame renders the boxes of one animation frame as a PNG.
func (h *routerHandlers) handleMoveFrame(w http.ResponseWriter, r *http.Request) {
	c, ok := h.characters.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, "unknown character", http.StatusNotFound)
		return
	}
	frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
	if err != nil {
		writeError(w, "frame must be an integer", http.StatusBadRequest)
		return
	}

	img, err := h.frames.PNG(c, chi.URLParam(r, "move"), frame)
	switch {
	case errors.Is(err, debugdraw.ErrUnknownAnimation), errors.Is(err, debugdraw.ErrFrameRange):
		writeError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(img)
}

type inputRequest struct {
	Player    int `json:"player"`
	Direction int `json:"direction"`
	Buttons   int `json:"buttons"`
}

// handleMatchInput latches a controller state. Out-of-range directions and
// buttons are accepted here; the input recognizer corrects them on the tick.
func (h *routerHandlers) handleMatchInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if s := sessionFrom(r.Context()); s != nil && !s.CanDrive(req.Player) {
		writeError(w, "session may not drive this player", http.StatusForbidden)
		return
	}

	err := h.engine.SetInput(req.Player, game.RawInput{Direction: req.Direction, Buttons: req.Buttons})
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleMatchReset(w http.ResponseWriter, r *http.Request) {
	h.engine.RequestReset()
	writeJSON(w, map[string]bool{"success": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
