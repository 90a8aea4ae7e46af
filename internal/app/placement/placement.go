// Package placement positions the draggable self-view thumbnail.
// It is pure geometry and knows nothing about calls.
package placement

import (
	"sync"
	"time"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width" mapstructure:"width"`
	Height float64 `json:"height" mapstructure:"height"`
}

// State is the thumbnail position inside its container. Center is the
// thumbnail origin expressed as its midpoint.
type State struct {
	Center Point `json:"center"`
	Bounds Size  `json:"bounds"`
	Thumb  Size  `json:"thumb"`
}

type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

type Curve string

const CurveEaseIn Curve = "easeIn"

// Spring describes one spring-damped animation.
type Spring struct {
	Damping         float64       `json:"damping" mapstructure:"damping"`
	InitialVelocity float64       `json:"initialVelocity" mapstructure:"initial_velocity"`
	Duration        time.Duration `json:"duration" mapstructure:"duration"`
	Curve           Curve         `json:"curve" mapstructure:"curve"`
}

// Animation moves the thumbnail center along one axis. Animations produced by
// one release are independent and may overlap.
type Animation struct {
	Axis   Axis    `json:"axis"`
	To     float64 `json:"to"`
	Spring Spring  `json:"spring"`
}

type Config struct {
	// EdgeInset is the horizontal distance of the snapped center from an edge.
	EdgeInset float64 `mapstructure:"edge_inset"`
	// TopMargin is subtracted from the thumb height to get the upper limit.
	TopMargin float64 `mapstructure:"top_margin"`
	// DefaultTrailing and DefaultTop place the thumbnail's leading/top edges
	// on Reset.
	DefaultTrailing float64 `mapstructure:"default_trailing"`
	DefaultTop      float64 `mapstructure:"default_top"`
	Thumb           Size    `mapstructure:"thumb"`
	Spring          Spring  `mapstructure:"spring"`
}

func DefaultConfig() Config {
	return Config{
		EdgeInset:       60,
		TopMargin:       20,
		DefaultTrailing: 120,
		DefaultTop:      70,
		Thumb:           Size{Width: 100, Height: 180},
		Spring: Spring{
			Damping:         1,
			InitialVelocity: 1,
			Duration:        500 * time.Millisecond,
			Curve:           CurveEaseIn,
		},
	}
}

type Controller struct {
	cfg Config

	mu    sync.Mutex
	state State
}

func NewController(cfg Config) *Controller {
	return &Controller{
		cfg:   cfg,
		state: State{Thumb: cfg.Thumb},
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resize records new container bounds without moving the thumbnail.
func (c *Controller) Resize(bounds Size) {
	c.mu.Lock()
	c.state.Bounds = bounds
	c.mu.Unlock()
}

// Reset places the thumbnail at its default spot near the top trailing corner.
func (c *Controller) Reset(bounds Size) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Bounds = bounds
	c.state.Center = Point{
		X: bounds.Width - c.cfg.DefaultTrailing + c.state.Thumb.Width/2,
		Y: c.cfg.DefaultTop + c.state.Thumb.Height/2,
	}
	return c.state
}

// Drag moves the thumbnail center to p. No clamping happens mid-gesture.
func (c *Controller) Drag(p Point) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Center = p
	return c.state
}

// Release ends a gesture and returns the corrective animations in the order
// they were issued. Each check sees the target of the previous one.
func (c *Controller) Release() []Animation {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Animation
	animate := func(axis Axis, to float64) {
		out = append(out, Animation{Axis: axis, To: to, Spring: c.cfg.Spring})
		if axis == AxisX {
			c.state.Center.X = to
		} else {
			c.state.Center.Y = to
		}
	}

	verticalBound := c.state.Bounds.Height / 4
	upperLimit := c.state.Thumb.Height - c.cfg.TopMargin

	if c.state.Center.Y >= verticalBound {
		animate(AxisY, verticalBound)
	}
	if c.state.Center.Y <= upperLimit {
		animate(AxisY, upperLimit)
	}
	// short containers put upperLimit below verticalBound
	if c.state.Center.Y >= verticalBound {
		animate(AxisY, verticalBound)
	}

	if c.state.Center.X >= c.state.Bounds.Width/2 {
		animate(AxisX, c.state.Bounds.Width-c.cfg.EdgeInset)
	} else {
		animate(AxisX, c.cfg.EdgeInset)
	}
	return out
}

// Final reduces a release result to the last target per axis.
func Final(anims []Animation, from Point) Point {
	p := from
	for _, a := range anims {
		if a.Axis == AxisX {
			p.X = a.To
		} else {
			p.Y = a.To
		}
	}
	return p
}
