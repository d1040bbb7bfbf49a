package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType is one of the closed set of security event categories.
type AlertType string

const (
	AlertTypeWeaponDetection       AlertType = "weapon_detection"
	AlertTypeUnauthorizedPassenger AlertType = "unauthorized_passenger"
	AlertTypeAggressionDetection   AlertType = "aggression_detection"
	AlertTypeHarassmentDetection   AlertType = "harassment_detection"
	AlertTypeRobberyPattern        AlertType = "robbery_pattern"
	AlertTypeRouteDeviation        AlertType = "route_deviation"
	AlertTypeDriverFatigue         AlertType = "driver_fatigue"
	AlertTypeDistressDetection     AlertType = "distress_detection"
)

// AlertTypes lists every accepted category.
var AlertTypes = []AlertType{
	AlertTypeWeaponDetection,
	AlertTypeUnauthorizedPassenger,
	AlertTypeAggressionDetection,
	AlertTypeHarassmentDetection,
	AlertTypeRobberyPattern,
	AlertTypeRouteDeviation,
	AlertTypeDriverFatigue,
	AlertTypeDistressDetection,
}

func (t AlertType) Valid() bool {
	for _, at := range AlertTypes {
		if t == at {
			return true
		}
	}
	return false
}

// Source names where an alert entered the system.
type Source string

const (
	SourceHTTP  Source = "HTTP"
	SourceMQTT  Source = "MQTT"
	SourceRedis Source = "REDIS"
	SourceKafka Source = "KAFKA"
)

// Alert is a persisted security event. It is never modified after insert.
type Alert struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	DeviceID    string    `json:"device_id" db:"device_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	AlertType   AlertType `json:"alert_type" db:"alert_type"`
	LocationLat *float64  `json:"location_lat" db:"location_lat"`
	LocationLon *float64  `json:"location_lon" db:"location_lon"`
	Payload     JSONMap   `json:"payload" db:"payload"`
}

// CreateAlertRequest is the ingestion body shared by HTTP and the message buses.
// It has no id field: ids are assigned by the store.
type CreateAlertRequest struct {
	DeviceID    string     `json:"device_id" binding:"required" validate:"required"`
	UserID      uuid.UUID  `json:"user_id" binding:"required" validate:"required"`
	Timestamp   *time.Time `json:"timestamp" binding:"required" validate:"required"`
	AlertType   AlertType  `json:"alert_type" binding:"required,alert_type" validate:"required,alert_type"`
	LocationLat *float64   `json:"location_lat" validate:"omitempty,latitude"`
	LocationLon *float64   `json:"location_lon" validate:"omitempty,longitude"`
	Payload     JSONMap    `json:"payload"`
}

// ToAlert copies the request into a new, not yet stored, Alert.
func (r *CreateAlertRequest) ToAlert() *Alert {
	a := &Alert{
		UserID:      r.UserID,
		DeviceID:    r.DeviceID,
		AlertType:   r.AlertType,
		LocationLat: r.LocationLat,
		LocationLon: r.LocationLon,
		Payload:     r.Payload,
	}
	if r.Timestamp != nil {
		a.Timestamp = *r.Timestamp
	}
	return a
}
