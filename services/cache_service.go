package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// InterfaceCacheService 定义缓存服务接口。
// 显式注入、显式失效，不用进程级全局缓存；由容器持有并传给需要的服务。
type InterfaceCacheService interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string, dest interface{}) (bool, error)
	Delete(key string) error
	CacheDeviceInfo(deviceID string, info interface{}) error
	GetDeviceInfo(deviceID string, dest interface{}) (bool, error)
	InvalidateDevice(deviceID string) error
}

// CacheService handles Redis-backed caching
type CacheService struct {
	Client *redis.Client
	Ctx    context.Context
}

// 设备注册信息的缓存时长
const deviceInfoTTL = 5 * time.Minute

// NewCacheService creates a new cache service
func NewCacheService(client *redis.Client) InterfaceCacheService {
	return &CacheService{
		Client: client,
		Ctx:    context.Background(),
	}
}

// Set sets a key-value pair with expiration
func (s *CacheService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, "cache:"+key, jsonValue, expiration).Err()
}

// Get gets a value by key, returns whether the key exists
func (s *CacheService) Get(key string, dest interface{}) (bool, error) {
	val, err := s.Client.Get(s.Ctx, "cache:"+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key
func (s *CacheService) Delete(key string) error {
	return s.Client.Del(s.Ctx, "cache:"+key).Err()
}

// CacheDeviceInfo 缓存设备注册信息
func (s *CacheService) CacheDeviceInfo(deviceID string, info interface{}) error {
	return s.Set(fmt.Sprintf("device:%s", deviceID), info, deviceInfoTTL)
}

// GetDeviceInfo 读取缓存的设备注册信息
func (s *CacheService) GetDeviceInfo(deviceID string, dest interface{}) (bool, error) {
	return s.Get(fmt.Sprintf("device:%s", deviceID), dest)
}

// InvalidateDevice 设备信息变更后主动失效缓存
func (s *CacheService) InvalidateDevice(deviceID string) error {
	return s.Delete(fmt.Sprintf("device:%s", deviceID))
}
