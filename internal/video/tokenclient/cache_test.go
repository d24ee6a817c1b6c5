package tokenclient_test

import (
	"testing"
	"time"

	"telemed/internal/video/token"
	"telemed/internal/video/tokenclient"
)

func TestCacheEvictsInsideSafetyMargin(t *testing.T) {
	now := time.Now()
	cache := tokenclient.NewCacheWithClock(func() time.Time { return now })

	req := testRequest()
	cache.Set(req, &token.IssuedToken{
		Token:     "header.payload.signature",
		ExpiresAt: now.Add(10 * time.Minute),
	})

	if cache.Get(req) == nil {
		t.Fatal("Get() = nil for fresh token, want cached entry")
	}

	// Advance the clock so the remaining lifetime drops below 5 minutes.
	now = now.Add(6 * time.Minute)

	if cached := cache.Get(req); cached != nil {
		t.Errorf("Get() = %v inside safety margin, want nil", cached)
	}

	// The stale entry must have been evicted, not just skipped.
	now = now.Add(-6 * time.Minute)
	if cached := cache.Get(req); cached != nil {
		t.Errorf("Get() = %v after eviction, want nil", cached)
	}
}

func TestCacheKeysByUserRoomRole(t *testing.T) {
	cache := tokenclient.NewCache()

	doctorReq := testRequest()
	cache.Set(doctorReq, &token.IssuedToken{Token: "doctor-token", ExpiresAt: time.Now().Add(time.Hour)})

	patientReq := doctorReq
	patientReq.UserRole = token.RolePatient

	if cached := cache.Get(patientReq); cached != nil {
		t.Errorf("Get() with different role = %v, want nil", cached)
	}

	otherRoom := doctorReq
	otherRoom.RoomID = "consultation-43"

	if cached := cache.Get(otherRoom); cached != nil {
		t.Errorf("Get() with different room = %v, want nil", cached)
	}

	if cached := cache.Get(doctorReq); cached == nil || cached.Token != "doctor-token" {
		t.Errorf("Get() with original key = %v, want doctor token", cached)
	}
}

func TestCacheClearRemovesAllEntries(t *testing.T) {
	cache := tokenclient.NewCache()

	req := testRequest()
	cache.Set(req, &token.IssuedToken{Token: "t", ExpiresAt: time.Now().Add(time.Hour)})

	cache.Clear()

	if cached := cache.Get(req); cached != nil {
		t.Errorf("Get() after Clear = %v, want nil", cached)
	}
}
