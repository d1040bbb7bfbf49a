package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRTSPPort is used when a camera is registered without a port.
const DefaultRTSPPort = 554

// Camera is an edge device registered by a user. Field names on the wire
// follow the device onboarding app.
type Camera struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"cameraName" db:"camera_name"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Port      int       `json:"port" db:"port"`
	Path      string    `json:"path" db:"path"`
	RTSPURL   string    `json:"rtspUrl" db:"rtsp_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CreateCameraRequest struct {
	CameraName string `json:"cameraName" binding:"required" validate:"required"`
	IPAddress  string `json:"ipAddress" binding:"required,ip|hostname_rfc1123" validate:"required,ip|hostname_rfc1123"`
	Username   string `json:"username" binding:"required" validate:"required"`
	Password   string `json:"password"`
	Port       int    `json:"port" binding:"omitempty,min=1,max=65535" validate:"omitempty,min=1,max=65535"`
	Path       string `json:"path" binding:"required" validate:"required"`
}
