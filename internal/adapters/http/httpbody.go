package http

type CreateRoomBody struct {
	ID   string `json:"id"   binding:"required,max=32"`
	Name string `json:"name" binding:"max=256"`
}

type KickQuery struct {
	Reason string `form:"reason" binding:"max=128"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
	Users  int    `json:"users"`
}
