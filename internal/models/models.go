package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

const CommandChannelLabel = "command"

type ConnectReq struct {
	Key       string    `json:"key"`
	SessionId uuid.UUID `json:"session_id"`
}

type Offer struct {
	Offer     webrtc.SessionDescription `json:"offer"`
	SessionId uuid.UUID                 `json:"session_id"`
}

type Answer struct {
	Answer    *webrtc.SessionDescription `json:"answer"`
	SessionId uuid.UUID                  `json:"session_id"`
}

// DriveCommand is a signed throttle/steering pair in -255..255.
type DriveCommand struct {
	Throttle int `json:"throttle"`
	Steering int `json:"steering"`
}

type VehicleStatus struct {
	State          string       `json:"state"`
	Command        DriveCommand `json:"command"`
	Output         DriveCommand `json:"output"`
	LastCommandAge int64        `json:"last_command_age_ms"`
	TimedOut       bool         `json:"timed_out"`
	Obstacle       float64      `json:"obstacle_cm"`
}

func Encode(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("failed encoding %T - %w", obj, err)
	}
	return string(data), nil
}

func Decode(msg string, obj any) error {
	err := json.Unmarshal([]byte(msg), obj)
	if err != nil {
		return fmt.Errorf("failed decoding %T - %w", obj, err)
	}
	return nil
}
