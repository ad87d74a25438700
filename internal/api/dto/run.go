package dto

import "github.com/goccy/go-json"

type RunRequest struct {
	OptimisationID int64           `json:"optimisation_id" validate:"gt=0"`
	Mode           string          `json:"mode" validate:"required"`
	Result         json.RawMessage `json:"result" validate:"required"`
	MovedPointIDs  []int64         `json:"moved_point_ids" validate:"omitempty,dive,gt=0"`
	TargetRouteID  int64           `json:"target_route_id" validate:"gte=0"`
}

type RunResponse struct {
	ID             int64  `json:"id"`
	OptimisationID int64  `json:"optimisation_id"`
	Mode           string `json:"mode"`
	State          string `json:"state"`
	Error          string `json:"error,omitempty"`
}
