package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

// memoryDocumentStore 内存版的状态存储，保证单文档写入顺序推送
type memoryDocumentStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	subs    map[int]*memorySub
	nextSub int
	locks   map[string]string
	indexes map[string]map[string]bool
	puts    int // 写入计数，用来断言失败路径没碰存储
}

type memorySub struct {
	key     string
	pattern bool
	ch      chan DocumentUpdate
}

func newMemoryDocumentStore() *memoryDocumentStore {
	return &memoryDocumentStore{
		docs:    make(map[string][]byte),
		subs:    make(map[int]*memorySub),
		locks:   make(map[string]string),
		indexes: make(map[string]map[string]bool),
	}
}

func (s *memoryDocumentStore) PutDocument(ctx context.Context, key string, doc interface{}) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = payload
	s.puts++
	for _, sub := range s.subs {
		if sub.matches(key) {
			sub.ch <- DocumentUpdate{Key: key, Payload: payload}
		}
	}
	return nil
}

func (s *memorySub) matches(key string) bool {
	if s.pattern {
		prefix := strings.TrimSuffix(strings.TrimPrefix(s.key, docChannelPrefix), "*")
		return strings.HasPrefix(key, prefix)
	}
	return s.key == key
}

func (s *memoryDocumentStore) GetDocument(ctx context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	payload, ok := s.docs[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (s *memoryDocumentStore) DeleteDocument(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}

func (s *memoryDocumentStore) subscribe(key string, pattern bool) *DocumentSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	sub := &memorySub{key: key, pattern: pattern, ch: make(chan DocumentUpdate, 64)}
	s.subs[id] = sub

	var once sync.Once
	return &DocumentSubscription{
		Updates: sub.ch,
		Errs:    make(chan error, 1),
		closeFn: func() {
			once.Do(func() {
				s.mu.Lock()
				delete(s.subs, id)
				s.mu.Unlock()
				close(sub.ch)
			})
		},
	}
}

func (s *memoryDocumentStore) Subscribe(ctx context.Context, key string) (*DocumentSubscription, error) {
	return s.subscribe(key, false), nil
}

func (s *memoryDocumentStore) SubscribePattern(ctx context.Context, pattern string) (*DocumentSubscription, error) {
	return s.subscribe(pattern, true), nil
}

func (s *memoryDocumentStore) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[key]; held {
		return false, nil
	}
	s.locks[key] = token
	return true, nil
}

func (s *memoryDocumentStore) ReleaseLock(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] == token {
		delete(s.locks, key)
	}
	return nil
}

func (s *memoryDocumentStore) AddToIndex(ctx context.Context, indexKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexes[indexKey] == nil {
		s.indexes[indexKey] = make(map[string]bool)
	}
	s.indexes[indexKey][member] = true
	return nil
}

func (s *memoryDocumentStore) ListIndex(ctx context.Context, indexKey string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]string, 0, len(s.indexes[indexKey]))
	for m := range s.indexes[indexKey] {
		members = append(members, m)
	}
	return members, nil
}

func (s *memoryDocumentStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// stubPresence 固定返回预设可用性判定
type stubPresence struct {
	result *AvailabilityResult
}

func (p *stubPresence) ListDevices(ctx context.Context, scopeID string) ([]models.DevicePresence, error) {
	return nil, nil
}

func (p *stubPresence) CheckAvailability(ctx context.Context, scopeID, deviceID string) (*AvailabilityResult, error) {
	return p.result, nil
}

func deviceAvailable() *stubPresence {
	return &stubPresence{result: &AvailabilityResult{Available: true, Reason: AvailabilityReasonOK}}
}

func deviceOffline() *stubPresence {
	return &stubPresence{result: &AvailabilityResult{
		Available: false,
		Reason:    AvailabilityReasonHeartbeatStale,
		Detail:    "心跳超出可达窗口",
	}}
}

// fakeMemberService 记录落地调用，验证"最多落地一次"
type fakeMemberService struct {
	mu       sync.Mutex
	calls    int
	lastFID  int
	failWith error
}

func (f *fakeMemberService) FinalizeEnrollment(ctx context.Context, scopeID string, attrs EnrolleeAttributes, fingerprintID int, deviceID string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.calls++
	f.lastFID = fingerprintID
	return &models.Member{ID: fingerprintID, MemberNo: "GM00000042", Name: attrs.Name}, nil
}

func (f *fakeMemberService) GetMemberByFingerprint(fingerprintID int) (*models.Member, error) {
	return nil, errors.New("未实现")
}

func (f *fakeMemberService) GetMembers(gymID string, query *models.PaginationQuery) ([]models.Member, models.PaginationResult, error) {
	return nil, models.PaginationResult{}, nil
}

func (f *fakeMemberService) UpdateMember(fingerprintID int, updates map[string]interface{}) (*models.Member, error) {
	return nil, errors.New("未实现")
}

func (f *fakeMemberService) DeleteMember(ctx context.Context, scopeID string, fingerprintID int) error {
	return nil
}

func (f *fakeMemberService) finalizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestEnrollmentService(store InterfaceDocumentStore, presence InterfacePresenceService,
	members InterfaceMemberService, timeout time.Duration) *EnrollmentService {
	return &EnrollmentService{
		Config:            &config.Config{GymScopeID: "gym1"},
		Store:             store,
		Presence:          presence,
		Members:           members,
		Sessions:          models.NewEnrollmentSessionManager(),
		EnrollmentTimeout: timeout,
	}
}

func validAttrs() EnrolleeAttributes {
	return EnrolleeAttributes{Name: "张三", Phone: "13800138000", Age: 28, MembershipType: "basic"}
}

// respondToCommand 模拟设备：等待信箱出现pending命令后按顺序写回状态
func respondToCommand(t *testing.T, store *memoryDocumentStore, key string,
	respond func(cmd models.EnrollmentCommand) []models.EnrollmentCommand) {
	t.Helper()

	sub, _ := store.Subscribe(context.Background(), key)
	go func() {
		defer sub.Close()
		for update := range sub.Updates {
			var cmd models.EnrollmentCommand
			if err := json.Unmarshal(update.Payload, &cmd); err != nil {
				continue
			}
			if cmd.Status != models.EnrollmentStatusPending {
				continue
			}
			for _, reply := range respond(cmd) {
				_ = store.PutDocument(context.Background(), key, reply)
			}
			return
		}
	}()
}

func TestBeginEnrollmentSuccess(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 2*time.Second)

	fid := 7
	respondToCommand(t, store, MailboxKey("gym1", "dev1"), func(cmd models.EnrollmentCommand) []models.EnrollmentCommand {
		inProgress := cmd
		inProgress.Status = models.EnrollmentStatusInProgress
		completed := cmd
		completed.Status = models.EnrollmentStatusCompleted
		completed.FingerprintID = &fid
		return []models.EnrollmentCommand{inProgress, completed}
	})

	result, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())
	if err != nil {
		t.Fatalf("登记应当成功, err=%v", err)
	}
	if result.FingerprintID != 7 {
		t.Errorf("指纹ID应为7, 实际=%d", result.FingerprintID)
	}
	if result.MemberKey != MemberKey("gym1", 7) {
		t.Errorf("会员文档键不对: %s", result.MemberKey)
	}
	if result.MemberNo != "GM00000042" {
		t.Errorf("会员号不对: %s", result.MemberNo)
	}
	if members.finalizeCount() != 1 {
		t.Errorf("会员应当恰好落地一次, 实际=%d", members.finalizeCount())
	}
	if _, active := svc.GetSession("dev1"); active {
		t.Error("登记结束后会话应当被清理")
	}
}

func TestBeginEnrollmentHardwareFailure(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 2*time.Second)

	respondToCommand(t, store, MailboxKey("gym1", "dev1"), func(cmd models.EnrollmentCommand) []models.EnrollmentCommand {
		failed := cmd
		failed.Status = models.EnrollmentStatusFailed
		failed.Message = "指纹图像质量太差"
		return []models.EnrollmentCommand{failed}
	})

	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())

	var hwErr *HardwareEnrollmentError
	if !errors.As(err, &hwErr) {
		t.Fatalf("应为HardwareEnrollmentError, 实际=%v", err)
	}
	if hwErr.Message != "指纹图像质量太差" {
		t.Errorf("应携带设备侧原因, 实际=%q", hwErr.Message)
	}
	if members.finalizeCount() != 0 {
		t.Error("失败路径不应落地会员")
	}
}

func TestBeginEnrollmentTimeout(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 150*time.Millisecond)

	// 设备不响应
	start := time.Now()
	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())
	elapsed := time.Since(start)

	var timeoutErr *EnrollmentTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("应为EnrollmentTimeoutError, 实际=%v", err)
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("不应在超时时间之前返回, elapsed=%v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("超时后应立即返回, elapsed=%v", elapsed)
	}
	if members.finalizeCount() != 0 {
		t.Error("超时路径不应落地会员")
	}

	// 信箱文档保持原样，留给下一次尝试的关联ID过滤处理
	var doc models.EnrollmentCommand
	found, _ := store.GetDocument(context.Background(), MailboxKey("gym1", "dev1"), &doc)
	if !found || doc.Status != models.EnrollmentStatusPending {
		t.Error("超时后信箱文档应保持pending原样")
	}
}

func TestBeginEnrollmentDeviceUnavailable(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestEnrollmentService(store, deviceOffline(), &fakeMemberService{}, time.Second)

	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())

	var unavailErr *DeviceUnavailableError
	if !errors.As(err, &unavailErr) {
		t.Fatalf("应为DeviceUnavailableError, 实际=%v", err)
	}
	if store.putCount() != 0 {
		t.Error("可用性检查失败时不应写任何文档")
	}
}

func TestBeginEnrollmentValidation(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestEnrollmentService(store, deviceAvailable(), &fakeMemberService{}, time.Second)

	cases := []struct {
		name  string
		attrs EnrolleeAttributes
	}{
		{"姓名太短", EnrolleeAttributes{Name: "张"}},
		{"姓名为空", EnrolleeAttributes{Name: "  "}},
		{"电话非法", EnrolleeAttributes{Name: "张三", Phone: "abc#123"}},
		{"年龄越界", EnrolleeAttributes{Name: "张三", Age: 150}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", tc.attrs)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("应为ValidationError, 实际=%v", err)
			}
		})
	}

	if store.putCount() != 0 {
		t.Error("校验失败时不应写任何文档")
	}
}

// 关联ID过滤：别的尝试的推送绝不能影响本次尝试
func TestCorrelationIDFiltering(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 2*time.Second)

	fid := 99
	respondToCommand(t, store, MailboxKey("gym1", "dev1"), func(cmd models.EnrollmentCommand) []models.EnrollmentCommand {
		// 先推一条陈旧尝试的completed，再推本次的failed
		stale := models.EnrollmentCommand{
			CorrelationID: "stale-attempt-123",
			Status:        models.EnrollmentStatusCompleted,
			FingerprintID: &fid,
		}
		failed := cmd
		failed.Status = models.EnrollmentStatusFailed
		failed.Message = "采集中断"
		return []models.EnrollmentCommand{stale, failed}
	})

	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())

	var hwErr *HardwareEnrollmentError
	if !errors.As(err, &hwErr) {
		t.Fatalf("陈旧completed应被忽略，本次应以failed结束, 实际=%v", err)
	}
	if members.finalizeCount() != 0 {
		t.Error("陈旧尝试的completed不应触发会员落地")
	}
}

func TestBeginEnrollmentCompletedWithoutFingerprintID(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 2*time.Second)

	respondToCommand(t, store, MailboxKey("gym1", "dev1"), func(cmd models.EnrollmentCommand) []models.EnrollmentCommand {
		completed := cmd
		completed.Status = models.EnrollmentStatusCompleted
		// 故意不带指纹ID
		return []models.EnrollmentCommand{completed}
	})

	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())

	var protoErr *DeviceProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("completed无指纹ID应为DeviceProtocolError, 实际=%v", err)
	}
	if members.finalizeCount() != 0 {
		t.Error("协议违规不应落地会员")
	}
}

func TestBeginEnrollmentUnknownStatus(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestEnrollmentService(store, deviceAvailable(), &fakeMemberService{}, 2*time.Second)

	respondToCommand(t, store, MailboxKey("gym1", "dev1"), func(cmd models.EnrollmentCommand) []models.EnrollmentCommand {
		bogus := cmd
		bogus.Status = models.EnrollmentStatus("exploded")
		return []models.EnrollmentCommand{bogus}
	})

	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())

	var protoErr *DeviceProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("未知状态值应为DeviceProtocolError, 实际=%v", err)
	}
}

// 同一设备的并发发起：后到者立即失败，不覆盖先到者的命令
func TestConcurrentBeginSameDevice(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 2*time.Second)

	started := make(chan struct{})
	firstDone := make(chan error, 1)

	// 第一个发起方：设备收到命令后通知测试，再等一会儿才完成
	fid := 5
	sub, _ := store.Subscribe(context.Background(), MailboxKey("gym1", "dev1"))
	go func() {
		defer sub.Close()
		update := <-sub.Updates
		var cmd models.EnrollmentCommand
		_ = json.Unmarshal(update.Payload, &cmd)
		close(started)
		time.Sleep(100 * time.Millisecond)
		completed := cmd
		completed.Status = models.EnrollmentStatusCompleted
		completed.FingerprintID = &fid
		_ = store.PutDocument(context.Background(), MailboxKey("gym1", "dev1"), completed)
	}()

	go func() {
		_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())
		firstDone <- err
	}()

	<-started

	// 第二个发起方在第一个还在进行时抢同一台设备
	_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())
	var unavailErr *DeviceUnavailableError
	if !errors.As(err, &unavailErr) {
		t.Fatalf("并发发起应为DeviceUnavailableError, 实际=%v", err)
	}

	if err := <-firstDone; err != nil {
		t.Fatalf("第一个发起方应正常完成, err=%v", err)
	}
	if members.finalizeCount() != 1 {
		t.Errorf("会员应当恰好落地一次, 实际=%d", members.finalizeCount())
	}
}

func TestCancelEnrollment(t *testing.T) {
	store := newMemoryDocumentStore()
	members := &fakeMemberService{}
	svc := newTestEnrollmentService(store, deviceAvailable(), members, 2*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := svc.BeginEnrollment(context.Background(), "gym1", "dev1", validAttrs())
		done <- err
	}()

	// 等命令写入信箱
	deadline := time.Now().Add(time.Second)
	for {
		var doc models.EnrollmentCommand
		found, _ := store.GetDocument(context.Background(), MailboxKey("gym1", "dev1"), &doc)
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("等待命令写入超时")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := svc.CancelEnrollment(context.Background(), "gym1", "dev1", "前台取消"); err != nil {
		t.Fatalf("取消应当成功, err=%v", err)
	}

	err := <-done
	var cancelErr *UserCancelledError
	if !errors.As(err, &cancelErr) {
		t.Fatalf("发起方应收到UserCancelledError, 实际=%v", err)
	}
	if members.finalizeCount() != 0 {
		t.Error("取消路径不应落地会员")
	}
}

func TestCancelEnrollmentNoActive(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestEnrollmentService(store, deviceAvailable(), &fakeMemberService{}, time.Second)

	err := svc.CancelEnrollment(context.Background(), "gym1", "dev1", "")
	if !errors.Is(err, ErrNoActiveEnrollment) {
		t.Fatalf("信箱为空时应返回ErrNoActiveEnrollment, 实际=%v", err)
	}
}

// 尝试已到终态后再取消是无害的空操作
func TestCancelEnrollmentAfterTerminal(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestEnrollmentService(store, deviceAvailable(), &fakeMemberService{}, time.Second)

	fid := 3
	terminal := models.EnrollmentCommand{
		CorrelationID: "finished-attempt",
		Status:        models.EnrollmentStatusCompleted,
		FingerprintID: &fid,
	}
	if err := store.PutDocument(context.Background(), MailboxKey("gym1", "dev1"), terminal); err != nil {
		t.Fatal(err)
	}

	if err := svc.CancelEnrollment(context.Background(), "gym1", "dev1", ""); err != nil {
		t.Fatalf("终态后的取消应为无害空操作, err=%v", err)
	}

	// 文档保持终态不被覆盖
	var doc models.EnrollmentCommand
	_, _ = store.GetDocument(context.Background(), MailboxKey("gym1", "dev1"), &doc)
	if doc.Status != models.EnrollmentStatusCompleted {
		t.Errorf("终态文档不应被取消覆盖, 实际状态=%s", doc.Status)
	}
}

func TestObserveEnrollment(t *testing.T) {
	store := newMemoryDocumentStore()
	svc := newTestEnrollmentService(store, deviceAvailable(), &fakeMemberService{}, time.Second)

	var mu sync.Mutex
	var seen []models.EnrollmentStatus
	unsubscribe, err := svc.ObserveEnrollment(context.Background(), "gym1", "dev1", func(u EnrollmentUpdate) {
		mu.Lock()
		seen = append(seen, u.Status)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()

	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusPending,
		models.EnrollmentStatusInProgress,
		models.EnrollmentStatusFailed,
	} {
		doc := models.EnrollmentCommand{CorrelationID: "obs", Status: status}
		if err := store.PutDocument(context.Background(), MailboxKey("gym1", "dev1"), doc); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("应观察到3次变更, 实际=%d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != models.EnrollmentStatusPending || seen[2] != models.EnrollmentStatusFailed {
		t.Errorf("变更应按写入顺序推送: %v", seen)
	}
}
