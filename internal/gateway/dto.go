package gateway

// Request bodies for the session REST surface.

type createSessionRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval"`
}

type setIntervalRequest struct {
	Interval string `json:"interval" binding:"required"`
}

type addOverlayRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Period int    `json:"period" binding:"required"`
	Color  string `json:"color"`
}

type zoomRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type rsiRequest struct {
	Enabled bool `json:"enabled"`
	Period  int  `json:"period"`
}

type sessionResponse struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

type errorResponse struct {
	Error string `json:"error"`
}
