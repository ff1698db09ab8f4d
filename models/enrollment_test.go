package models

import (
	"testing"
	"time"
)

func TestParseEnrollmentStatus(t *testing.T) {
	known := []string{"pending", "in_progress", "completed", "failed", "cancelled"}
	for _, s := range known {
		status, ok := ParseEnrollmentStatus(s)
		if !ok {
			t.Errorf("%q 应为合法状态", s)
		}
		if string(status) != s {
			t.Errorf("解析结果不对: %s != %s", status, s)
		}
	}

	unknown := []string{"", "done", "PENDING", "in-progress", "error"}
	for _, s := range unknown {
		if _, ok := ParseEnrollmentStatus(s); ok {
			t.Errorf("%q 不应被接受", s)
		}
	}
}

func TestEnrollmentStatusIsTerminal(t *testing.T) {
	terminal := []EnrollmentStatus{EnrollmentStatusCompleted, EnrollmentStatusFailed, EnrollmentStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s 应为终态", s)
		}
	}

	active := []EnrollmentStatus{EnrollmentStatusPending, EnrollmentStatusInProgress}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s 不应为终态", s)
		}
	}
}

func TestDevicePresenceIsReachable(t *testing.T) {
	now := time.Now()
	window := 120 * time.Second

	fresh := DevicePresence{LastHeartbeat: now.Add(-30 * time.Second).UnixMilli()}
	if !fresh.IsReachable(now, window) {
		t.Error("30秒前的心跳应判定为可达")
	}

	stale := DevicePresence{LastHeartbeat: now.Add(-3 * time.Minute).UnixMilli()}
	if stale.IsReachable(now, window) {
		t.Error("3分钟前的心跳应判定为不可达")
	}
}

func TestSessionManagerCreateAndDuplicate(t *testing.T) {
	m := NewEnrollmentSessionManager()

	session, err := m.CreateSession("dev1", "corr-1", "张三")
	if err != nil {
		t.Fatalf("首次创建应当成功, err=%v", err)
	}
	if session.State != AttemptStateRequesting {
		t.Errorf("初始状态应为requesting, 实际=%s", session.State)
	}

	// 同一设备上已有活跃会话，拒绝第二个
	if _, err := m.CreateSession("dev1", "corr-2", "李四"); err == nil {
		t.Error("同一设备上的重复创建应被拒绝")
	}

	// 别的设备不受影响
	if _, err := m.CreateSession("dev2", "corr-3", "王五"); err != nil {
		t.Errorf("别的设备应能创建会话, err=%v", err)
	}
}

func TestSessionManagerCorrelationIDMismatch(t *testing.T) {
	m := NewEnrollmentSessionManager()
	if _, err := m.CreateSession("dev1", "corr-1", "张三"); err != nil {
		t.Fatal(err)
	}

	// 关联ID不匹配的更新和结束都应被拒绝
	if err := m.UpdateSessionState("dev1", "corr-other", AttemptStateProcessing, ""); err == nil {
		t.Error("关联ID不匹配的更新应被拒绝")
	}
	if _, err := m.EndSession("dev1", "corr-other", AttemptStateCancelled); err == nil {
		t.Error("关联ID不匹配的结束应被拒绝")
	}

	// 会话仍然活跃且状态未被动过
	session, exists := m.GetSession("dev1")
	if !exists {
		t.Fatal("会话不应被移除")
	}
	state, _, _ := session.Snapshot()
	if state != AttemptStateRequesting {
		t.Errorf("状态不应被不匹配的更新改动, 实际=%s", state)
	}
}

func TestSessionManagerEndSession(t *testing.T) {
	m := NewEnrollmentSessionManager()
	if _, err := m.CreateSession("dev1", "corr-1", "张三"); err != nil {
		t.Fatal(err)
	}

	if err := m.UpdateSessionState("dev1", "corr-1", AttemptStateProcessing, "采集中"); err != nil {
		t.Fatalf("匹配的更新应当成功, err=%v", err)
	}

	ended, err := m.EndSession("dev1", "corr-1", AttemptStateSuccess)
	if err != nil {
		t.Fatalf("匹配的结束应当成功, err=%v", err)
	}
	state, _, _ := ended.Snapshot()
	if state != AttemptStateSuccess {
		t.Errorf("结束状态应为success, 实际=%s", state)
	}

	if _, exists := m.GetSession("dev1"); exists {
		t.Error("结束后会话应被移除")
	}

	// 结束后设备可以开始新的会话
	if _, err := m.CreateSession("dev1", "corr-2", "李四"); err != nil {
		t.Errorf("结束后应能创建新会话, err=%v", err)
	}
}

func TestSessionManagerCleanupStaleSessions(t *testing.T) {
	m := NewEnrollmentSessionManager()

	stale, err := m.CreateSession("dev-stale", "corr-1", "张三")
	if err != nil {
		t.Fatal(err)
	}
	// 人为把最后活动时间拨回过去
	stale.mu.Lock()
	stale.LastActivity = time.Now().Add(-10 * time.Minute)
	stale.mu.Unlock()

	if _, err := m.CreateSession("dev-active", "corr-2", "李四"); err != nil {
		t.Fatal(err)
	}

	cleaned := m.CleanupStaleSessions(5 * time.Minute)
	if cleaned != 1 {
		t.Errorf("应清理1个滞留会话, 实际=%d", cleaned)
	}
	if _, exists := m.GetSession("dev-stale"); exists {
		t.Error("滞留会话应被移除")
	}
	if _, exists := m.GetSession("dev-active"); !exists {
		t.Error("活跃会话不应被清理")
	}
}
