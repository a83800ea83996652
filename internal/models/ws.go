package models

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressUpdate reports a long-running stage of an assessment request over
// the websocket channel.
type ProgressUpdate struct {
	Stage           string  `json:"stage"`
	Detail          string  `json:"detail,omitempty"`
	BytesDownloaded int64   `json:"bytes_downloaded,omitempty"`
	TotalBytes      int64   `json:"total_bytes,omitempty"`
	Percent         float64 `json:"percent,omitempty"`
}
