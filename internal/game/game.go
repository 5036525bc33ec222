package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/MrWong99/voicesteer/internal/recognizer"
	"github.com/MrWong99/voicesteer/pkg/direction"
)

// DefaultTick is the time between moves.
const DefaultTick = 2 * time.Second

// Config configures a [Game].
type Config struct {
	// Screen is the terminal to draw on. It must not be initialised yet;
	// Run calls Init and Fini.
	Screen tcell.Screen

	// State is read once per tick.
	State *direction.State

	// Tick is the time between moves. Default: 2s.
	Tick time.Duration

	Model ModelConfig
}

// Summary is returned by [Game.Run].
type Summary struct {
	Score int
	Moves int

	// Over is false when the player quit before the snake died.
	Over bool
}

// Game is the terminal front end.
type Game struct {
	screen tcell.Screen
	state  *direction.State
	tick   time.Duration
	model  *Model

	mu    sync.Mutex
	heard recognizer.Result
}

// New creates a Game. cfg.Screen and cfg.State are required.
func New(cfg Config) (*Game, error) {
	if cfg.Screen == nil {
		return nil, fmt.Errorf("game: screen is required")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("game: direction state is required")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	return &Game{
		screen: cfg.Screen,
		state:  cfg.State,
		tick:   cfg.Tick,
		model:  NewModel(cfg.Model, cfg.State.Read()),
	}, nil
}

// Observe records the latest recognition result for the HUD. It satisfies
// [recognizer.Observer] and is safe to call from the loop goroutine.
func (g *Game) Observe(r recognizer.Result) {
	if !r.Outcome.Heard() {
		return
	}
	g.mu.Lock()
	g.heard = r
	g.mu.Unlock()
	// Wake the render loop so the HUD updates between ticks.
	_ = g.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Run draws the board and advances the snake every tick until the snake
// dies, the player presses q, Esc or Ctrl-C, or ctx is cancelled.
func (g *Game) Run(ctx context.Context) (Summary, error) {
	if err := g.screen.Init(); err != nil {
		return Summary{}, fmt.Errorf("game: init screen: %w", err)
	}
	defer g.screen.Fini()
	g.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	g.screen.HideCursor()

	events := make(chan tcell.Event, 8)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(events)
		for {
			ev := g.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	var sum Summary
	g.render()
	for {
		select {
		case <-ctx.Done():
			return g.summary(sum), nil

		case ev, ok := <-events:
			if !ok {
				return g.summary(sum), nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				g.screen.Sync()
			case *tcell.EventKey:
				if isQuit(ev) {
					slog.Info("game quit by player", "score", g.model.Score())
					return g.summary(sum), nil
				}
			}
			g.render()

		case <-ticker.C:
			res := g.model.Step(g.state.Read())
			sum.Moves++
			if res.Over {
				slog.Info("game over", "score", g.model.Score(), "moves", sum.Moves)
				g.render()
				return g.summary(sum), nil
			}
			g.render()
		}
	}
}

func (g *Game) summary(s Summary) Summary {
	s.Score = g.model.Score()
	s.Over = g.model.Over()
	return s
}

func isQuit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q' || ev.Rune() == 'Q'
	}
	return false
}

var (
	styleBorder = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleSnake  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleFood   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleHUD    = tcell.StyleDefault.Bold(true).Reverse(true)
	styleHelp   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleOver   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true).Reverse(true)
)

// render draws the HUD on row 0 and the board, with a border, below it. Each
// board cell is two columns wide so the board looks square.
func (g *Game) render() {
	s := g.screen
	s.Clear()
	width, _ := s.Size()
	w, h := g.model.Size()

	g.mu.Lock()
	heard := g.heard
	g.mu.Unlock()

	hud := fmt.Sprintf(" score %d  heading %s  state %s ", g.model.Score(), g.model.Heading(), g.state.Read())
	if heard.Transcription.Text != "" {
		hud += fmt.Sprintf(" heard %q (%s, %.2f, %s) ", heard.Transcription.Text,
			heard.Transcription.Engine, heard.Match.Score, heard.Outcome)
	}
	drawText(s, 0, 0, width, styleHUD, hud)

	const top = 1
	for x := 0; x < w*2+2; x++ {
		s.SetContent(x, top, '─', nil, styleBorder)
		s.SetContent(x, top+h+1, '─', nil, styleBorder)
	}
	for y := top + 1; y <= top+h; y++ {
		s.SetContent(0, y, '│', nil, styleBorder)
		s.SetContent(w*2+1, y, '│', nil, styleBorder)
	}

	cell := func(p Point, r rune, st tcell.Style) {
		x, y := 1+p.X*2, top+1+p.Y
		s.SetContent(x, y, r, nil, st)
		s.SetContent(x+1, y, r, nil, st)
	}
	cell(g.model.Food(), '●', styleFood)
	for i, p := range g.model.Body() {
		r := '█'
		if i == 0 {
			r = '▓'
		}
		cell(p, r, styleSnake)
	}

	if g.model.Over() {
		msg := fmt.Sprintf(" GAME OVER  score %d ", g.model.Score())
		drawText(s, max(0, w+1-len(msg)/2), top+1+h/2, len(msg), styleOver, msg)
	}
	drawText(s, 0, top+h+2, width, styleHelp, " say up, down, left or right   [q]/[Esc]=Quit ")
	s.Show()
}

// drawText draws a string at the given position and pads the rest of
// maxWidth with spaces.
func drawText(s tcell.Screen, x, y, maxWidth int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			break
		}
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
	for col < maxWidth {
		s.SetContent(x+col, y, ' ', nil, style)
		col++
	}
}
