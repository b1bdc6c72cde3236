package model

import "time"

// SessionPoint is one history sample of a plug-in session.
type SessionPoint struct {
	Time     time.Time `json:"time"`
	SoC      float64   `json:"soc"`
	Amps     int       `json:"amps"`
	Charging bool      `json:"charging"`
	Price    float64   `json:"price"`
}

// SessionRecord is the open record of the current plug-in session.
type SessionRecord struct {
	ID        string         `json:"id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	History   []SessionPoint `json:"history"`
	Log       []string       `json:"log"`
}

// SessionReport summarizes a finalized session.
type SessionReport struct {
	ID         string         `json:"id"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	StartSoC   float64        `json:"start_soc"`
	EndSoC     float64        `json:"end_soc"`
	AddedKWh   float64        `json:"added_kwh"`
	TotalCost  float64        `json:"total_cost"`
	Currency   string         `json:"currency"`
	GraphData  []SessionPoint `json:"graph_data"`
	SessionLog []string       `json:"session_log"`
}

// LogEntry is one line of the rolling action log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String formats the entry as "[YYYY-MM-DD HH:MM:SS] message".
func (e LogEntry) String() string {
	return "[" + e.Time.Format("2006-01-02 15:04:05") + "] " + e.Message
}
