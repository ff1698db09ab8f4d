package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// 文档键的构造。scope是场馆标识，device是设备序列号。
const docChannelPrefix = "docs:"

// MailboxKey 设备命令信箱文档的键
func MailboxKey(scopeID, deviceID string) string {
	return fmt.Sprintf("enroll:cmd:%s:%s", scopeID, deviceID)
}

// PresenceKey 设备在线状态文档的键
func PresenceKey(scopeID, deviceID string) string {
	return fmt.Sprintf("presence:%s:%s", scopeID, deviceID)
}

// PresenceIndexKey 场馆内全部在线状态文档的索引集合键
func PresenceIndexKey(scopeID string) string {
	return fmt.Sprintf("presence:index:%s", scopeID)
}

// MemberKey 会员文档的键，以指纹ID定位
func MemberKey(scopeID string, fingerprintID int) string {
	return fmt.Sprintf("member:%s:%d", scopeID, fingerprintID)
}

// EnrollLockKey 设备登记锁的键
func EnrollLockKey(scopeID, deviceID string) string {
	return fmt.Sprintf("enroll:lock:%s:%s", scopeID, deviceID)
}

// MailboxKeyPattern 信箱文档订阅通道的匹配模式（网关中继用）
func MailboxKeyPattern(scopeID string) string {
	return docChannelPrefix + fmt.Sprintf("enroll:cmd:%s:*", scopeID)
}

// DocumentUpdate 一次文档变更的推送
type DocumentUpdate struct {
	Key     string // 变更的文档键
	Payload []byte // 变更后文档的完整JSON
}

// DocumentSubscription 文档变更订阅句柄。
// Updates按写入顺序逐条推送同一文档的每次变更；Close后通道关闭。
type DocumentSubscription struct {
	Updates <-chan DocumentUpdate
	Errs    <-chan error
	closeFn func()
}

// Close 关闭订阅并释放底层资源，可重复调用
func (s *DocumentSubscription) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// InterfaceDocumentStore 定义共享状态存储接口。
// 存储保证单文档写入的原子性，以及同一文档变更按写入顺序推送给订阅者；
// 不保证跨文档的顺序。
type InterfaceDocumentStore interface {
	PutDocument(ctx context.Context, key string, doc interface{}) error
	GetDocument(ctx context.Context, key string, dest interface{}) (bool, error)
	DeleteDocument(ctx context.Context, key string) error
	Subscribe(ctx context.Context, key string) (*DocumentSubscription, error)
	SubscribePattern(ctx context.Context, pattern string) (*DocumentSubscription, error)
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	AddToIndex(ctx context.Context, indexKey, member string) error
	ListIndex(ctx context.Context, indexKey string) ([]string, error)
}

// RedisDocumentStore 基于Redis的共享状态存储实现。
// 每次写入先SET整个文档再PUBLISH到该键对应的通道，
// 单连接的PUBLISH顺序与写入顺序一致，满足单文档有序推送的要求。
type RedisDocumentStore struct {
	Client *redis.Client
}

// NewRedisDocumentStore 创建一个新的Redis文档存储
func NewRedisDocumentStore(client *redis.Client) InterfaceDocumentStore {
	return &RedisDocumentStore{Client: client}
}

// PutDocument 原子写入整个文档并推送变更
func (s *RedisDocumentStore) PutDocument(ctx context.Context, key string, doc interface{}) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("序列化文档失败: %v", err)
	}

	if err := s.Client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("写入文档失败 [%s]: %v", key, err)
	}

	if err := s.Client.Publish(ctx, docChannelPrefix+key, payload).Err(); err != nil {
		// 文档已写入，推送失败只记录，订阅方靠超时兜底
		log.Printf("[存储] 推送文档变更失败 [%s]: %v", key, err)
	}

	return nil
}

// GetDocument 读取文档，返回是否存在
func (s *RedisDocumentStore) GetDocument(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := s.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取文档失败 [%s]: %v", key, err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("解析文档失败 [%s]: %v", key, err)
	}
	return true, nil
}

// DeleteDocument 删除文档
func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// Subscribe 订阅单个文档的变更
func (s *RedisDocumentStore) Subscribe(ctx context.Context, key string) (*DocumentSubscription, error) {
	pubsub := s.Client.Subscribe(ctx, docChannelPrefix+key)
	// 确认订阅已建立，避免错过紧随其后的写入
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("建立文档订阅失败 [%s]: %v", key, err)
	}
	return s.wrapPubSub(ctx, pubsub), nil
}

// SubscribePattern 按通配模式订阅一组文档的变更
func (s *RedisDocumentStore) SubscribePattern(ctx context.Context, pattern string) (*DocumentSubscription, error) {
	pubsub := s.Client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("建立模式订阅失败 [%s]: %v", pattern, err)
	}
	return s.wrapPubSub(ctx, pubsub), nil
}

// wrapPubSub 把Redis的PubSub封装成DocumentSubscription
func (s *RedisDocumentStore) wrapPubSub(ctx context.Context, pubsub *redis.PubSub) *DocumentSubscription {
	updates := make(chan DocumentUpdate, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				updates <- DocumentUpdate{
					Key:     strings.TrimPrefix(msg.Channel, docChannelPrefix),
					Payload: []byte(msg.Payload),
				}
			case <-ctx.Done():
				select {
				case errs <- ctx.Err():
				default:
				}
				return
			}
		}
	}()

	return &DocumentSubscription{
		Updates: updates,
		Errs:    errs,
		closeFn: func() { pubsub.Close() },
	}
}

// AcquireLock 尝试获取带过期时间的锁，返回是否成功
func (s *RedisDocumentStore) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败 [%s]: %v", key, err)
	}
	return ok, nil
}

// ReleaseLock 释放锁，只有持有者的token匹配才会删除
func (s *RedisDocumentStore) ReleaseLock(ctx context.Context, key, token string) error {
	val, err := s.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // 锁已过期
	}
	if err != nil {
		return err
	}
	if val != token {
		// 锁已被别的尝试持有，不能动
		return nil
	}
	return s.Client.Del(ctx, key).Err()
}

// AddToIndex 把成员加入索引集合
func (s *RedisDocumentStore) AddToIndex(ctx context.Context, indexKey, member string) error {
	return s.Client.SAdd(ctx, indexKey, member).Err()
}

// ListIndex 列出索引集合的全部成员
func (s *RedisDocumentStore) ListIndex(ctx context.Context, indexKey string) ([]string, error) {
	return s.Client.SMembers(ctx, indexKey).Result()
}
