// Package model holds the enums and small value types shared by the simulation packages.
package model

import (
	"fmt"
	"strings"
)

type CarKind int

const (
	CarKindPlayer CarKind = iota
	CarKindAI
)

func (k CarKind) String() string {
	switch k {
	case CarKindPlayer:
		return "player"
	case CarKindAI:
		return "ai"
	default:
		return fmt.Sprintf("CarKind(%d)", int(k))
	}
}

// Decision is the tactical mode of an AI car
type Decision int

const (
	DecisionRace Decision = iota
	DecisionOvertake
	DecisionDefend
	DecisionFollow
	DecisionRam
	DecisionBrakeCheck
	DecisionRandomSwerve
)

var decisionNames = [...]string{
	"race", "overtake", "defend", "follow", "ram", "brake_check", "random_swerve",
}

func (d Decision) String() string {
	if d < 0 || int(d) >= len(decisionNames) {
		return fmt.Sprintf("Decision(%d)", int(d))
	}
	return decisionNames[d]
}

// PowerUpType identifies an item. PowerUpNone marks an empty slot.
type PowerUpType int

const (
	PowerUpNone PowerUpType = iota
	PowerUpSpeedBoost
	PowerUpShield
	PowerUpMissile
	PowerUpOilSlick
	PowerUpNitro
	PowerUpEMP
)

// AllPowerUps lists the spawnable types in spawn order
var AllPowerUps = []PowerUpType{
	PowerUpSpeedBoost, PowerUpShield, PowerUpMissile,
	PowerUpOilSlick, PowerUpNitro, PowerUpEMP,
}

var powerUpNames = [...]string{
	"none", "speed_boost", "shield", "missile", "oil_slick", "nitro", "emp",
}

func (p PowerUpType) String() string {
	if p < 0 || int(p) >= len(powerUpNames) {
		return fmt.Sprintf("PowerUpType(%d)", int(p))
	}
	return powerUpNames[p]
}

type PersonalityTag string

const (
	Aggressive    PersonalityTag = "aggressive"
	Tactical      PersonalityTag = "tactical"
	Defensive     PersonalityTag = "defensive"
	Unpredictable PersonalityTag = "unpredictable"
	Professional  PersonalityTag = "professional"
)

// AllPersonalities is used for round robin assignment of opponents
var AllPersonalities = []PersonalityTag{
	Aggressive, Tactical, Defensive, Unpredictable, Professional,
}

type SkillTier int

const (
	Novice SkillTier = iota
	Amateur
	Skilled
	Expert
	Legend
)

var tierNames = [...]string{"novice", "amateur", "skilled", "expert", "legend"}

func (t SkillTier) String() string {
	if t < Novice || t > Legend {
		return fmt.Sprintf("SkillTier(%d)", int(t))
	}
	return tierNames[t]
}

// Up returns the next tier, clamped at Legend
func (t SkillTier) Up() SkillTier {
	if t >= Legend {
		return Legend
	}
	return t + 1
}

// Down returns the previous tier, clamped at Novice
func (t SkillTier) Down() SkillTier {
	if t <= Novice {
		return Novice
	}
	return t - 1
}

func ParseSkillTier(s string) (SkillTier, error) {
	for i, n := range tierNames {
		if strings.EqualFold(n, s) {
			return SkillTier(i), nil
		}
	}
	return Skilled, fmt.Errorf("unknown skill tier %q", s)
}

// Timing is the predicate an AI evaluates before using a held power-up
type Timing int

const (
	TimingImmediate Timing = iota
	TimingStrategic
	TimingCombat
	TimingDefensive
	TimingEscape
	TimingOvertake
	TimingOptimal
	TimingRandom
	TimingDesperate
	TimingBlocking
)

var timingNames = [...]string{
	"immediate", "strategic", "combat", "defensive", "escape",
	"overtake", "optimal", "random", "desperate", "blocking",
}

func (t Timing) String() string {
	if t < 0 || int(t) >= len(timingNames) {
		return fmt.Sprintf("Timing(%d)", int(t))
	}
	return timingNames[t]
}

// StatField addresses a value a modifier can change
type StatField int

const (
	MaxSpeed StatField = iota
	Acceleration
	BrakeForce
	Grip
	SteerAuthority
	ThrottleAuthority
	MistakeRate
	TargetSpeed
	FieldCount
)

var fieldNames = [...]string{
	"max_speed", "acceleration", "brake_force", "grip",
	"steer_authority", "throttle_authority", "mistake_rate", "target_speed",
}

func (f StatField) String() string {
	if f < 0 || f >= FieldCount {
		return fmt.Sprintf("StatField(%d)", int(f))
	}
	return fieldNames[f]
}

// Stats holds one value per StatField
type Stats [FieldCount]float64

func (s Stats) Get(f StatField) float64 { return s[f] }

func (s *Stats) Set(f StatField, v float64) { s[f] = v }
