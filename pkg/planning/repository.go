package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRecord is the archived form of an assembled plan.
type PlanRecord struct {
	ID              uuid.UUID         `json:"id" gorm:"primaryKey;column:id"`
	StudyID         string            `json:"study_id" gorm:"column:study_id;index"`
	DiseaseArea     string            `json:"disease_area" gorm:"column:disease_area"`
	ComplexityScore float64           `json:"complexity_score" gorm:"column:complexity_score"`
	ComplexityLevel string            `json:"complexity_level" gorm:"column:complexity_level"`
	SiteCount       int               `json:"site_count" gorm:"column:site_count"`
	TopSiteID       string            `json:"top_site_id,omitempty" gorm:"column:top_site_id"`
	Submission      datatypes.JSONMap `json:"submission" gorm:"column:submission"`
	Result          datatypes.JSONMap `json:"result" gorm:"column:result"`
	CreatedAt       time.Time         `json:"created_at" gorm:"column:created_at"`
}

func (PlanRecord) TableName() string {
	return "study_plans"
}

// NewPlanRecord captures a result and the request that produced it.
func NewPlanRecord(req models.PlanRequest, result *StudyPlanResult) (*PlanRecord, error) {
	submission, err := toJSONMap(req)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	payload, err := toJSONMap(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	rec := &PlanRecord{
		ID:              uuid.New(),
		StudyID:         result.StudyID,
		DiseaseArea:     req.DiseaseArea,
		ComplexityScore: result.ProtocolComplexityScore,
		ComplexityLevel: string(result.Complexity.Level),
		SiteCount:       len(result.RankedSites),
		Submission:      submission,
		Result:          payload,
		CreatedAt:       result.CreatedAt,
	}
	if len(result.RankedSites) > 0 {
		rec.TopSiteID = result.RankedSites[0].SiteID
	}
	return rec, nil
}

// EventData is the payload published for a completed plan.
func (r *PlanRecord) EventData() map[string]interface{} {
	return map[string]interface{}{
		"record_id":        r.ID.String(),
		"study_id":         r.StudyID,
		"disease_area":     r.DiseaseArea,
		"complexity_score": r.ComplexityScore,
		"complexity_level": r.ComplexityLevel,
		"site_count":       r.SiteCount,
		"top_site_id":      r.TopSiteID,
		"submission":       map[string]interface{}(r.Submission),
		"result":           map[string]interface{}(r.Result),
		"created_at":       r.CreatedAt.Format(time.RFC3339Nano),
	}
}

// RecordFromEvent rebuilds a PlanRecord from a plan.completed event.
func RecordFromEvent(event models.Event) (*PlanRecord, error) {
	if event.Type != models.EventPlanCompleted {
		return nil, fmt.Errorf("unexpected event type %q", event.Type)
	}
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	var data struct {
		RecordID        string                 `json:"record_id"`
		StudyID         string                 `json:"study_id"`
		DiseaseArea     string                 `json:"disease_area"`
		ComplexityScore float64                `json:"complexity_score"`
		ComplexityLevel string                 `json:"complexity_level"`
		SiteCount       int                    `json:"site_count"`
		TopSiteID       string                 `json:"top_site_id"`
		Submission      map[string]interface{} `json:"submission"`
		Result          map[string]interface{} `json:"result"`
		CreatedAt       time.Time              `json:"created_at"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode plan event: %w", err)
	}
	if data.StudyID == "" {
		return nil, fmt.Errorf("plan event %s missing study id", event.ID)
	}
	id, err := uuid.Parse(data.RecordID)
	if err != nil {
		id = uuid.New()
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = event.Timestamp
	}
	return &PlanRecord{
		ID:              id,
		StudyID:         data.StudyID,
		DiseaseArea:     data.DiseaseArea,
		ComplexityScore: data.ComplexityScore,
		ComplexityLevel: data.ComplexityLevel,
		SiteCount:       data.SiteCount,
		TopSiteID:       data.TopSiteID,
		Submission:      datatypes.JSONMap(data.Submission),
		Result:          datatypes.JSONMap(data.Result),
		CreatedAt:       data.CreatedAt.UTC(),
	}, nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PlanRecord{})
}

// Save inserts rec, ignoring a record id that is already stored so
// redelivered events stay idempotent.
func (r *Repository) Save(ctx context.Context, rec *PlanRecord) error {
	return insertPlan(r.db.WithContext(ctx), rec).Error
}

// insertPlan is a single statement, so two archivers saving the same
// event cannot both pass a lookup and collide on the primary key.
func insertPlan(tx *gorm.DB, rec *PlanRecord) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(rec)
}

// Recent returns the most recent plans up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []PlanRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func toJSONMap(v interface{}) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
