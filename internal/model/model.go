package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Entity{},
	&EntityState{},
	&Detonation{},
	&Damage{},
	&HitchEvent{},
	&Removal{},
}

// Point is a geometry column holding an EPSG:3857 position with height in metres.
// It is stored as WKB; on postgres the column is a PostGIS geometry.
type Point struct {
	geom.Point
}

// NewPoint wraps a simplefeatures point for storage.
func NewPoint(p geom.Point) Point {
	return Point{Point: p}
}

func (Point) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "geometry(PointZ)"
	}
	return "blob"
}

// Vec3 is a vector stored as a JSON array.
type Vec3 = datatypes.JSONType[[3]float64]

// NewVec3 builds a JSON vector column value.
func NewVec3(x, y, z float64) Vec3 {
	return datatypes.NewJSONType([3]float64{x, y, z})
}

// Severities holds the probabilities of none, mobility, firepower,
// mobility+firepower and kill, in that order.
type Severities = datatypes.JSONType[[5]float64]

// NewSeverities builds a probability column value.
func NewSeverities(p [5]float64) Severities {
	return datatypes.NewJSONType(p)
}

// Run is one execution of a scenario.
type Run struct {
	ID              uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	Name            string         `json:"name" gorm:"size:128"`
	Scenario        string         `json:"scenario" gorm:"size:128"`
	StartTime       time.Time      `json:"startTime" gorm:"NOT NULL;"`
	EndTime         sql.NullTime   `json:"endTime"`
	TickRate        float64        `json:"tickRate"`
	OriginLongitude float64        `json:"originLongitude"`
	OriginLatitude  float64        `json:"originLatitude"`
	Version         string         `json:"version" gorm:"size:32"`
	Ticks           uint64         `json:"ticks"`
}

func (*Run) TableName() string {
	return "runs"
}

// Entity is a simulated body registered during a run.
// Uses composite primary key (RunID, ID).
type Entity struct {
	RunID     uint      `json:"runId" gorm:"primaryKey;autoIncrement:false"`
	ID        uuid.UUID `json:"id" gorm:"primaryKey;size:36"`
	Run       Run       `json:"-" gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name      string    `json:"name" gorm:"size:64"`
	Kind      string    `json:"kind" gorm:"size:32"`
	Archetype string    `json:"archetype" gorm:"size:64"`
	Remote    bool      `json:"remote" gorm:"default:false"`
	JoinTime  time.Time `json:"joinTime" gorm:"NOT NULL;index:idx_entity_join_time"`
	JoinTick  uint64    `json:"joinTick"`
}

func (*Entity) TableName() string {
	return "entities"
}

// EntityState is the pose of an entity at one tick.
type EntityState struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time  `json:"time"`
	RunID    uint       `json:"runId" gorm:"index:idx_entitystate_run_id"`
	Run      Run        `json:"-" gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick     uint64     `json:"tick" gorm:"index:idx_entitystate_tick"`
	EntityID uuid.UUID  `json:"entityId" gorm:"size:36;index:idx_entitystate_entity_id"`
	ParentID *uuid.UUID `json:"parentId" gorm:"size:36"`

	Position  Point   `json:"position"` // EPSG:3857 with height
	LocalX    float64 `json:"localX"`
	LocalY    float64 `json:"localY"`
	LocalZ    float64 `json:"localZ"`
	Heading   float64 `json:"heading"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
	Velocity  Vec3    `json:"velocity"`
	Speed     float64 `json:"speed"`
	Algorithm string  `json:"algorithm" gorm:"size:32"` // dead reckoning
}

func (*EntityState) TableName() string {
	return "entity_states"
}

// Detonation is one munition detonation.
type Detonation struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time  `json:"time"`
	RunID      uint       `json:"runId" gorm:"index:idx_detonation_run_id"`
	Run        Run        `json:"-" gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick       uint64     `json:"tick"`
	Munition   string     `json:"munition" gorm:"size:64"`
	ShooterID  *uuid.UUID `json:"shooterId" gorm:"size:36"`
	Position   Point      `json:"position"`
	Trajectory Vec3       `json:"trajectory"`
}

func (*Detonation) TableName() string {
	return "detonations"
}

// Damage is the damage evaluation of one target.
type Damage struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time  `json:"time"`
	RunID         uint       `json:"runId" gorm:"index:idx_damage_run_id"`
	Run           Run        `json:"-" gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick          uint64     `json:"tick"`
	Munition      string     `json:"munition" gorm:"size:64"`
	TargetID      uuid.UUID  `json:"targetId" gorm:"size:36;index:idx_damage_target_id"`
	Distance      float64    `json:"distance"`
	Force         Vec3       `json:"force"`
	Probabilities Severities `json:"probabilities"`
	Absolute      bool       `json:"absolute"`
	Severity      string     `json:"severity" gorm:"size:32"`
}

func (*Damage) TableName() string {
	return "damages"
}

// HitchEvent is an attach or detach of a trailer.
type HitchEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	RunID     uint      `json:"runId" gorm:"index:idx_hitchevent_run_id"`
	Run       Run       `json:"-" gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick      uint64    `json:"tick"`
	Action    string    `json:"action" gorm:"size:16"`
	TractorID uuid.UUID `json:"tractorId" gorm:"size:36"`
	TrailerID uuid.UUID `json:"trailerId" gorm:"size:36"`
	Mode      string    `json:"mode" gorm:"size:32"`
}

func (*HitchEvent) TableName() string {
	return "hitch_events"
}

// Removal records an entity leaving the run.
type Removal struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time  `json:"time"`
	RunID    uint       `json:"runId" gorm:"index:idx_removal_run_id"`
	Run      Run        `json:"-" gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Tick     uint64     `json:"tick"`
	EntityID uuid.UUID  `json:"entityId" gorm:"size:36"`
	Cascade  bool       `json:"cascade"`
	CauseID  *uuid.UUID `json:"causeId" gorm:"size:36"`
}

func (*Removal) TableName() string {
	return "removals"
}
