package api

// AutoChatRequest is the payload for starting or reconfiguring auto chat
type AutoChatRequest struct {
	Theme    string `json:"theme"`
	Interval int    `json:"interval"`
}

// AutoChatSettingsResponse echoes the applied settings
type AutoChatSettingsResponse struct {
	Theme    string `json:"theme"`
	Interval int    `json:"interval"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
