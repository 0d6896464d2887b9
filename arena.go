package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The arena is a small headless world that lets the CLI exercise the policy
// end to end. It is deliberately simple: a rectangle, food points, and
// creatures that move with the speed and turn rate the policy picks.
//
// ONE TICK PER CREATURE:
//   1. Pay the life cost. A creature at zero life stops acting.
//   2. Find the closest food. Reward is proximity shaping in [0, 2], or a
//      flat eat reward when inside the eat radius (the food respawns and the
//      creature gains life).
//   3. Sense: two antennae at ±25° around the heading report the signed
//      angle from their pointing direction to the food; wall proximity is
//      measured towards the walls the creature is heading at.
//   4. Act: the agent turns the four observation tokens into a rotation bin
//      and a speed bin.
//   5. Move. Touching the border kills the creature and the step is not
//      recorded.
//   6. Record [left, right, wallX, wallY, rotation, speed] with the reward.
//
// Headings are in degrees; the creature faces angle+90 (sprites point up).
//
// ===========================================================================

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
)

// ArenaConfig describes the world.
type ArenaConfig struct {
	FoodSupply  int
	MinX, MinY  float64
	MaxX, MaxY  float64
	InitialLife float64
	LifeCost    float64 // life lost per second
	EatRadius   float64
	EatLife     float64 // life gained per food
	EatReward   float64 // reward of a tick in which food is eaten
	SensorAngle float64 // antenna offset from the heading, degrees
	SensorReach float64 // antenna length
	Seed        int64
}

// DefaultArenaConfig returns the 40×40 world of the foraging simulation.
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		FoodSupply:  80,
		MinX:        -20,
		MinY:        -20,
		MaxX:        20,
		MaxY:        20,
		InitialLife: 100,
		LifeCost:    3,
		EatRadius:   0.3,
		EatLife:     50,
		EatReward:   10,
		SensorAngle: 25,
		SensorReach: 0.5,
		Seed:        1,
	}
}

// Validate rejects unusable settings.
func (c ArenaConfig) Validate() error {
	switch {
	case c.FoodSupply <= 0:
		return configErrorf("arena.food_supply", "must be positive, got %d", c.FoodSupply)
	case !(c.MaxX > c.MinX) || !(c.MaxY > c.MinY):
		return configErrorf("arena.bounds", "empty bounds [%g,%g]×[%g,%g]", c.MinX, c.MaxX, c.MinY, c.MaxY)
	case c.InitialLife <= 0:
		return configErrorf("arena.initial_life", "must be positive, got %g", c.InitialLife)
	case c.LifeCost < 0:
		return configErrorf("arena.life_cost", "must not be negative, got %g", c.LifeCost)
	case c.EatRadius <= 0:
		return configErrorf("arena.eat_radius", "must be positive, got %g", c.EatRadius)
	}
	return nil
}

// Vec2 is a point in the arena.
type Vec2 struct{ X, Y float64 }

// Dist returns the Euclidean distance between p and q.
func (p Vec2) Dist(q Vec2) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// extend returns the point dist away from p in direction angleDeg.
func (p Vec2) extend(angleDeg, dist float64) Vec2 {
	rad := angleDeg * math.Pi / 180
	return Vec2{p.X + math.Cos(rad)*dist, p.Y + math.Sin(rad)*dist}
}

// Creature is an agent's body.
type Creature struct {
	Agent     *Agent
	Position  Vec2
	Angle     float64 // degrees in [0, 360)
	Speed     float64
	Life      float64
	FoodEaten int
	Alive     bool
}

// Arena is the headless world.
type Arena struct {
	config    ArenaConfig
	vocab     Vocabulary
	creatures []*Creature
	food      []Vec2
	rng       *rand.Rand
	logger    *slog.Logger
}

// NewArena places one creature per agent and spawns the food.
func NewArena(config ArenaConfig, agents []*Agent) (*Arena, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("arena: no agents")
	}
	a := &Arena{
		config: config,
		vocab:  agents[0].Vocabulary(),
		food:   make([]Vec2, config.FoodSupply),
		rng:    rand.New(rand.NewSource(config.Seed)),
		logger: componentLogger("arena"),
	}
	for _, ag := range agents {
		a.creatures = append(a.creatures, &Creature{Agent: ag})
	}
	a.Reset()
	return a, nil
}

// Reset respawns every creature and every food point.
func (a *Arena) Reset() {
	for _, c := range a.creatures {
		c.Position = a.randomPoint()
		c.Angle = a.rng.Float64() * 360
		c.Speed = 0
		c.Life = a.config.InitialLife
		c.FoodEaten = 0
		c.Alive = true
	}
	for i := range a.food {
		a.food[i] = a.randomPoint()
	}
}

// randomPoint returns a point inside the bounds, away from the walls by a
// tenth of the extent.
func (a *Arena) randomPoint() Vec2 {
	c := a.config
	mx := (c.MaxX - c.MinX) * 0.1
	my := (c.MaxY - c.MinY) * 0.1
	return Vec2{
		X: c.MinX + mx + a.rng.Float64()*(c.MaxX-c.MinX-2*mx),
		Y: c.MinY + my + a.rng.Float64()*(c.MaxY-c.MinY-2*my),
	}
}

// Creatures returns the bodies in agent order.
func (a *Arena) Creatures() []*Creature { return a.creatures }

// Food returns the food positions.
func (a *Arena) Food() []Vec2 { return a.food }

// AliveCount returns the number of creatures still alive.
func (a *Arena) AliveCount() int {
	n := 0
	for _, c := range a.creatures {
		if c.Alive {
			n++
		}
	}
	return n
}

// AllDead reports whether no creature is alive.
func (a *Arena) AllDead() bool { return a.AliveCount() == 0 }

// FoodEaten returns the food eaten by all creatures this episode.
func (a *Arena) FoodEaten() int {
	n := 0
	for _, c := range a.creatures {
		n += c.FoodEaten
	}
	return n
}

// Tick advances every living creature by dt seconds.
func (a *Arena) Tick(dt float64) error {
	for _, c := range a.creatures {
		if err := a.live(c, dt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Arena) live(c *Creature, dt float64) error {
	if !c.Alive {
		return nil
	}
	c.Life -= a.config.LifeCost * dt
	if c.Life <= 0 {
		c.Alive = false
		return nil
	}

	fi, dist := a.closestFood(c.Position)
	reward := (1 - clamp(dist/a.sensingRadius(), 0, 1)) * 2
	if dist < a.config.EatRadius {
		c.Life += a.config.EatLife
		c.FoodEaten++
		a.food[fi] = a.randomPoint()
		reward = a.config.EatReward
	}

	obs := a.vocab.EncodeObservation(a.Observe(c, a.food[fi]))
	d, err := c.Agent.Act(obs)
	if err != nil {
		return err
	}
	act := a.vocab.DecodeAction(d.RotationBin, d.SpeedBin)

	c.Angle = math.Mod(math.Mod(c.Angle+act.Rotation*dt, 360)+360, 360)
	c.Speed = act.Speed
	c.Position = c.Position.extend(c.Angle+90, c.Speed*dt)

	if a.touchingBorder(c.Position) {
		c.Alive = false
		c.Life = 0
		a.logger.Debug("creature hit the border", slog.String("agent", c.Agent.ID.String()))
		return nil
	}

	tokens := append(obs, d.RotationToken, d.SpeedToken)
	return c.Agent.RecordStep(tokens, reward)
}

// Observe computes what c senses about food.
func (a *Arena) Observe(c *Creature, food Vec2) Observation {
	leftDir := c.Angle - a.config.SensorAngle + 90
	rightDir := c.Angle + a.config.SensorAngle + 90
	left := c.Position.extend(leftDir, a.config.SensorReach)
	right := c.Position.extend(rightDir, a.config.SensorReach)

	cfg := a.config
	width, height := cfg.MaxX-cfg.MinX, cfg.MaxY-cfg.MinY
	forward := (c.Angle + 90) * math.Pi / 180
	toWallX := c.Position.X - cfg.MinX
	if math.Cos(forward) > 0 {
		toWallX = cfg.MaxX - c.Position.X
	}
	toWallY := c.Position.Y - cfg.MinY
	if math.Sin(forward) > 0 {
		toWallY = cfg.MaxY - c.Position.Y
	}

	return Observation{
		LeftAngle:  relativeAngle(left, leftDir, food),
		RightAngle: relativeAngle(right, rightDir, food),
		WallProxX:  1 - math.Min(toWallX/width, 1),
		WallProxY:  1 - math.Min(toWallY/height, 1),
	}
}

// relativeAngle returns the signed angle in degrees, in [-180, 180], from
// direction dirDeg at from to target.
func relativeAngle(from Vec2, dirDeg float64, target Vec2) float64 {
	rad := math.Atan2(target.Y-from.Y, target.X-from.X) - dirDeg*math.Pi/180
	rad = math.Remainder(rad, 2*math.Pi)
	return rad * 180 / math.Pi
}

func (a *Arena) closestFood(p Vec2) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for i, f := range a.food {
		if d := p.Dist(f); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func (a *Arena) sensingRadius() float64 {
	c := a.config
	return math.Max(c.MaxX-c.MinX, c.MaxY-c.MinY) / 2
}

func (a *Arena) touchingBorder(p Vec2) bool {
	c := a.config
	return p.X <= c.MinX || p.X >= c.MaxX || p.Y <= c.MinY || p.Y >= c.MaxY
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
