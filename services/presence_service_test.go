package services

import (
	"context"
	"testing"
	"time"

	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

func newTestPresenceService(store InterfaceDocumentStore, window time.Duration) *PresenceService {
	return &PresenceService{Store: store, ReachabilityWindow: window}
}

func putPresence(t *testing.T, store *memoryDocumentStore, scopeID string, p models.DevicePresence) {
	t.Helper()
	if err := store.PutDocument(context.Background(), PresenceKey(scopeID, p.DeviceID), p); err != nil {
		t.Fatal(err)
	}
	if err := store.AddToIndex(context.Background(), PresenceIndexKey(scopeID), p.DeviceID); err != nil {
		t.Fatal(err)
	}
}

func TestCheckAvailability(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestPresenceService(store, 120*time.Second)
	now := time.Now()

	putPresence(t, store, "gym1", models.DevicePresence{
		DeviceID:      "fresh-online",
		LastHeartbeat: now.UnixMilli(),
		ReportedState: models.DeviceStateOnline,
	})
	putPresence(t, store, "gym1", models.DevicePresence{
		DeviceID:      "stale",
		LastHeartbeat: now.Add(-3 * time.Minute).UnixMilli(),
		ReportedState: models.DeviceStateOnline,
	})
	putPresence(t, store, "gym1", models.DevicePresence{
		DeviceID:      "fresh-busy",
		LastHeartbeat: now.UnixMilli(),
		ReportedState: models.DeviceStateBusy,
	})

	cases := []struct {
		deviceID  string
		available bool
		reason    string
	}{
		{"fresh-online", true, AvailabilityReasonOK},
		{"stale", false, AvailabilityReasonHeartbeatStale},
		{"fresh-busy", false, AvailabilityReasonNotOnline},
		{"never-seen", false, AvailabilityReasonNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.deviceID, func(t *testing.T) {
			result, err := svc.CheckAvailability(context.Background(), "gym1", tc.deviceID)
			if err != nil {
				t.Fatal(err)
			}
			if result.Available != tc.available {
				t.Errorf("Available应为%v, 实际=%v", tc.available, result.Available)
			}
			if result.Reason != tc.reason {
				t.Errorf("Reason应为%s, 实际=%s", tc.reason, result.Reason)
			}
		})
	}
}

// 心跳刚好在窗口边界上视为不可达
func TestCheckAvailabilityWindowBoundary(t *testing.T) {
	store := newMemoryDocumentStore()
	window := 120 * time.Second
	svc := newTestPresenceService(store, window)

	putPresence(t, store, "gym1", models.DevicePresence{
		DeviceID:      "edge",
		LastHeartbeat: time.Now().Add(-window - time.Second).UnixMilli(),
		ReportedState: models.DeviceStateOnline,
	})

	result, err := svc.CheckAvailability(context.Background(), "gym1", "edge")
	if err != nil {
		t.Fatal(err)
	}
	if result.Available {
		t.Error("超出窗口的心跳应判定为不可达")
	}
	if result.Reason != AvailabilityReasonHeartbeatStale {
		t.Errorf("Reason应为heartbeat_stale, 实际=%s", result.Reason)
	}
}

func TestListDevices(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestPresenceService(store, 120*time.Second)
	now := time.Now()

	putPresence(t, store, "gym1", models.DevicePresence{
		DeviceID:      "dev1",
		LastHeartbeat: now.UnixMilli(),
		ReportedState: models.DeviceStateOnline,
	})
	putPresence(t, store, "gym1", models.DevicePresence{
		DeviceID:      "dev2",
		LastHeartbeat: now.Add(-time.Hour).UnixMilli(),
		ReportedState: models.DeviceStateOnline,
	})

	// 索引里有但文档已丢失的设备
	if err := store.AddToIndex(context.Background(), PresenceIndexKey("gym1"), "ghost"); err != nil {
		t.Fatal(err)
	}

	// 别的场馆的设备不应出现
	putPresence(t, store, "gym2", models.DevicePresence{
		DeviceID:      "other-gym",
		LastHeartbeat: now.UnixMilli(),
		ReportedState: models.DeviceStateOnline,
	})

	devices, err := svc.ListDevices(context.Background(), "gym1")
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Fatalf("应列出2台设备（ghost跳过，other-gym不在本场馆）, 实际=%d", len(devices))
	}
	for _, d := range devices {
		if d.DeviceID != "dev1" && d.DeviceID != "dev2" {
			t.Errorf("出现意外设备: %s", d.DeviceID)
		}
	}
}

func TestListDevicesEmpty(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestPresenceService(store, 120*time.Second)

	devices, err := svc.ListDevices(context.Background(), "gym1")
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 0 {
		t.Errorf("空场馆应返回空列表, 实际=%d", len(devices))
	}
}
