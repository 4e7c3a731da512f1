// Package messages defines the newline-delimited JSON wire shapes the
// spray and lighting cores accept on their TCP ingestion listeners.
package messages

import "time"

// SprayMessage is one inbound "weed" message from the perception service.
// Channels are 0-indexed on the wire; the core adds 1 before applying the
// channel map.
type SprayMessage struct {
	ChannelsToOpen []int     `json:"channels_to_open"`
	StartSprayTime time.Time `json:"start_spray_time"`
	EndSprayTime   time.Time `json:"end_spray_time"`
}

// LightMessage is one inbound light-control message.
type LightMessage struct {
	Channels   []int `json:"channels"`
	IsOn       bool  `json:"is_on"`
	CamID      int   `json:"cam_id"`
	CropBedID  int   `json:"crop_bed_id"`
}
