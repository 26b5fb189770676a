package models

import (
	"fmt"
	"time"
)

// Lifecycle collections. A bin identity lives in exactly one of bins,
// archive, and deleted at any time; its serial reservation outlives all of
// them.
const (
	CollectionBins    = "bins"
	CollectionArchive = "archive"
	CollectionDeleted = "deleted"
	CollectionSerials = "serials"
)

// Bin status values as stored in the bins collection.
const (
	StatusAvailable = "Available"
	StatusActive    = "Active"
)

// Archive/deleted status values.
const (
	StatusArchived = "archived"
	StatusRestored = "restored"
	StatusDeleted  = "deleted"
)

// ReasonEmptying marks an archive performed to empty the bin for service.
// Restoring from it implies the bin was physically emptied.
const ReasonEmptying = "Emptying"

// Bin is the live operational record in the bins collection. Telemetry
// fields (fill_level, waste_composition, general_waste, battery,
// connectivity) are written by the external ingestion service.
type Bin struct {
	Serial           string             `json:"serial"`
	Name             string             `json:"name"`
	Capacity         int                `json:"capacity"`
	Threshold        int                `json:"threshold"`
	Location         string             `json:"location"`
	ImageURL         string             `json:"imageUrl"`
	SensorStatus     string             `json:"sensorStatus"`
	Status           string             `json:"status"`
	CreatedAt        time.Time          `json:"createdAt"`
	CreatedBy        string             `json:"createdBy"`
	LastConfigured   *time.Time         `json:"lastConfigured,omitempty"`
	FillLevel        float64            `json:"fill_level"`
	WasteComposition map[string]float64 `json:"waste_composition,omitempty"`
	GeneralWaste     float64            `json:"general_waste"`
	Battery          float64            `json:"battery"`
	Connectivity     string             `json:"connectivity"`
	RestoredAt       *time.Time         `json:"restoredAt,omitempty"`
	RestoredBy       string             `json:"restoredBy,omitempty"`
	LastEmptiedAt    *time.Time         `json:"lastEmptiedAt,omitempty"`
	EmptiedBy        string             `json:"emptiedBy,omitempty"`
}

// ValidateBinConfig enforces the configuration bounds before any persistence
// of a Bin: threshold in [1,100], capacity at least 1.
func ValidateBinConfig(capacity, threshold int) error {
	if threshold < 1 || threshold > 100 {
		return fmt.Errorf("threshold must be between 1 and 100, got %d", threshold)
	}
	if capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", capacity)
	}
	return nil
}

// Validate checks the invariants enforced before persisting a Bin.
func (b *Bin) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	return ValidateBinConfig(b.Capacity, b.Threshold)
}

// Encode produces the document map stored in the bins collection. Field
// names match the existing store layout exactly.
func (b *Bin) Encode() map[string]interface{} {
	data := map[string]interface{}{
		"serial":       b.Serial,
		"name":         b.Name,
		"capacity":     b.Capacity,
		"threshold":    b.Threshold,
		"location":     b.Location,
		"imageUrl":     b.ImageURL,
		"sensorStatus": b.SensorStatus,
		"status":       b.Status,
		"createdAt":    b.CreatedAt,
		"createdBy":    b.CreatedBy,
		"fill_level":   b.FillLevel,
		"general_waste": b.GeneralWaste,
		"battery":      b.Battery,
		"connectivity": b.Connectivity,
	}
	if b.WasteComposition != nil {
		composition := make(map[string]interface{}, len(b.WasteComposition))
		for k, v := range b.WasteComposition {
			composition[k] = v
		}
		data["waste_composition"] = composition
	}
	if b.LastConfigured != nil {
		data["lastConfigured"] = *b.LastConfigured
	}
	if b.RestoredAt != nil {
		data["restoredAt"] = *b.RestoredAt
		data["restoredBy"] = b.RestoredBy
	}
	if b.LastEmptiedAt != nil {
		data["lastEmptiedAt"] = *b.LastEmptiedAt
		data["emptiedBy"] = b.EmptiedBy
	}
	return data
}

// DecodeBin validates and converts a raw bins document.
func DecodeBin(id string, data map[string]interface{}) (Bin, error) {
	r := newDocReader(CollectionBins, id, data)
	bin := Bin{
		Serial:           r.requiredStr("serial"),
		Name:             r.requiredStr("name"),
		Capacity:         r.intVal("capacity"),
		Threshold:        r.intVal("threshold"),
		Location:         r.str("location"),
		ImageURL:         r.str("imageUrl"),
		SensorStatus:     r.str("sensorStatus"),
		Status:           r.requiredStr("status"),
		CreatedAt:        r.requiredTime("createdAt"),
		CreatedBy:        r.str("createdBy"),
		LastConfigured:   r.timePtr("lastConfigured"),
		FillLevel:        r.floatVal("fill_level"),
		WasteComposition: r.floatMap("waste_composition"),
		GeneralWaste:     r.floatVal("general_waste"),
		Battery:          r.floatVal("battery"),
		Connectivity:     r.str("connectivity"),
		RestoredAt:       r.timePtr("restoredAt"),
		RestoredBy:       r.str("restoredBy"),
		LastEmptiedAt:    r.timePtr("lastEmptiedAt"),
		EmptiedBy:        r.str("emptiedBy"),
	}
	if r.err != nil {
		return Bin{}, r.err
	}
	return bin, nil
}
