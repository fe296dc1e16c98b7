package dto

import (
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// ServerKeyResponse identifies a server key. Key material is never returned.
type ServerKeyResponse struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// CleanupResponse reports how many expired keys were deactivated.
type CleanupResponse struct {
	Deactivated int64 `json:"deactivated"`
}

// StatsResponse reports key cache occupancy.
type StatsResponse struct {
	CacheSize       int   `json:"cache_size"`
	CacheCapacity   int   `json:"cache_capacity"`
	CacheTTLSeconds int64 `json:"cache_ttl_seconds"`
}

// MapStatsToResponse converts vault stats to an API response.
func MapStatsToResponse(stats keyvaultDomain.Stats) StatsResponse {
	return StatsResponse{
		CacheSize:       stats.CacheSize,
		CacheCapacity:   stats.CacheCapacity,
		CacheTTLSeconds: int64(stats.CacheTTL.Seconds()),
	}
}
