// Package game is a terminal snake driven by the shared direction state.
//
// [Model] holds the board and advances one cell per [Model.Step]. [Game]
// renders a Model on a tcell screen, reads the direction once per tick and
// stops on quit keys or when the snake dies.
package game

import (
	"math/rand/v2"
	"slices"

	"github.com/MrWong99/voicesteer/pkg/direction"
)

// Default board size in cells.
const (
	DefaultWidth  = 30
	DefaultHeight = 20
)

// Point is a board cell. X grows to the right, Y grows downward.
type Point struct{ X, Y int }

// Add returns p moved one cell in d.
func (p Point) Add(d direction.Direction) Point {
	dx, dy := d.Delta()
	return Point{p.X + dx, p.Y + dy}
}

// ModelConfig configures a [Model].
type ModelConfig struct {
	// Width and Height of the board. Defaults: 30x20.
	Width, Height int

	// Start is the initial head position. A zero Start selects (5, 2).
	Start Point

	// Rand places food. Default: a randomly seeded PCG source.
	Rand *rand.Rand
}

// StepResult reports what happened during one [Model.Step].
type StepResult struct {
	// Moved is the direction the snake actually moved in.
	Moved direction.Direction
	Ate   bool
	Over  bool
}

// Model is the snake board. Not safe for concurrent use.
type Model struct {
	width, height int
	body          []Point // head first
	heading       direction.Direction
	food          Point
	score         int
	over          bool
	rng           *rand.Rand
}

// NewModel creates a board with a one-cell snake heading in heading and one
// food item. An invalid heading selects right.
func NewModel(cfg ModelConfig, heading direction.Direction) *Model {
	if cfg.Width <= 1 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 1 {
		cfg.Height = DefaultHeight
	}
	if cfg.Start == (Point{}) {
		cfg.Start = Point{5, 2}
	}
	cfg.Start.X = min(max(cfg.Start.X, 0), cfg.Width-1)
	cfg.Start.Y = min(max(cfg.Start.Y, 0), cfg.Height-1)
	if !heading.IsValid() {
		heading = direction.Right
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := &Model{
		width:   cfg.Width,
		height:  cfg.Height,
		body:    []Point{cfg.Start},
		heading: heading,
		rng:     cfg.Rand,
	}
	m.placeFood()
	return m
}

// Size returns the board dimensions.
func (m *Model) Size() (width, height int) { return m.width, m.height }

// Body returns a copy of the snake, head first.
func (m *Model) Body() []Point { return slices.Clone(m.body) }

// Head returns the head cell.
func (m *Model) Head() Point { return m.body[0] }

// Heading is the direction of the last move.
func (m *Model) Heading() direction.Direction { return m.heading }

// Food returns the food cell.
func (m *Model) Food() Point { return m.food }

// Score is the number of food items eaten.
func (m *Model) Score() int { return m.score }

// Over reports whether the snake has died.
func (m *Model) Over() bool { return m.over }

// SetFood moves the food to p. Intended for tests and scripted demos.
func (m *Model) SetFood(p Point) { m.food = p }

// Step advances the snake one cell. A direction that would turn the head
// back into the neck is ignored and the snake keeps its heading; this
// happens when two commands are accepted within a single tick. Stepping a
// finished game is a no-op.
func (m *Model) Step(d direction.Direction) StepResult {
	if m.over {
		return StepResult{Moved: m.heading, Over: true}
	}
	if !d.IsValid() || (len(m.body) > 1 && d == m.heading.Opposite()) {
		d = m.heading
	}
	m.heading = d

	head := m.body[0].Add(d)
	res := StepResult{Moved: d}

	grow := head == m.food
	if !grow {
		m.body = m.body[:len(m.body)-1]
	}
	if !m.inBounds(head) || slices.Contains(m.body, head) {
		m.over = true
		res.Over = true
		return res
	}
	m.body = slices.Insert(m.body, 0, head)

	if grow {
		m.score++
		res.Ate = true
		if !m.placeFood() {
			// Board is full.
			m.over = true
			res.Over = true
		}
	}
	return res
}

func (m *Model) inBounds(p Point) bool {
	return p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height
}

// placeFood puts food on a random free cell and reports whether one existed.
func (m *Model) placeFood() bool {
	free := make([]Point, 0, m.width*m.height-len(m.body))
	for y := range m.height {
		for x := range m.width {
			p := Point{x, y}
			if !slices.Contains(m.body, p) {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return false
	}
	m.food = free[m.rng.IntN(len(free))]
	return true
}
