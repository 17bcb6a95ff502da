package dto

import (
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

type GeoPoint struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

func (g *GeoPoint) Adapt() *pure_utils.GeoPoint {
	if g == nil {
		return nil
	}
	return &pure_utils.GeoPoint{Lat: g.Latitude, Lng: g.Longitude}
}

type GateEntryRequest struct {
	Plate     string    `json:"plate" binding:"required"`
	LotId     string    `json:"lot_id" binding:"required"`
	Geo       *GeoPoint `json:"geo,omitempty"`
	RiskScore *int      `json:"risk_score,omitempty" binding:"omitempty,min=0,max=100"`
}

type SessionPolicyGrant struct {
	GrantId         string    `json:"grant_id"`
	PolicyHash      string    `json:"policy_hash"`
	AllowedRails    []string  `json:"allowed_rails"`
	AllowedAssets   []Asset   `json:"allowed_assets"`
	RequireApproval bool      `json:"require_approval"`
	Reasons         []string  `json:"reasons,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func AdaptSessionPolicyGrant(grant models.SessionPolicyGrant) SessionPolicyGrant {
	rails := make([]string, len(grant.AllowedRails))
	for i, r := range grant.AllowedRails {
		rails[i] = string(r)
	}
	assets := make([]Asset, len(grant.AllowedAssets))
	for i, a := range grant.AllowedAssets {
		assets[i] = AdaptAsset(a)
	}
	reasons := make([]string, len(grant.Reasons))
	for i, r := range grant.Reasons {
		reasons[i] = string(r)
	}
	return SessionPolicyGrant{
		GrantId:         grant.Id,
		PolicyHash:      grant.PolicyHash,
		AllowedRails:    rails,
		AllowedAssets:   assets,
		RequireApproval: grant.RequireApproval,
		Reasons:         reasons,
		ExpiresAt:       grant.ExpiresAt,
	}
}

type GateEntryResponse struct {
	SessionId string             `json:"session_id"`
	Plate     string             `json:"plate"`
	LotId     string             `json:"lot_id"`
	EntryTime time.Time          `json:"entry_time"`
	Grant     SessionPolicyGrant `json:"grant"`
}

func AdaptGateEntryResponse(session models.Session, grant models.SessionPolicyGrant) GateEntryResponse {
	return GateEntryResponse{
		SessionId: session.Id,
		Plate:     session.Plate,
		LotId:     session.LotId,
		EntryTime: session.EntryTime,
		Grant:     AdaptSessionPolicyGrant(grant),
	}
}
