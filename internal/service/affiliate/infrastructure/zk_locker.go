// internal/service/affiliate/infrastructure/zk_locker.go
package infrastructure

import (
	"context"

	"warung/internal/service/affiliate/domain"
	"warung/internal/zookeeper"

	"github.com/pkg/errors"
)

// ZkLockerAdapter 是 domain.Locker 的 ZooKeeper 实现。
// 管理端对同一推广用户的佣金/提现操作在这个互斥区内串行化，
// 防止两个管理员并发处理同一条记录时的重复记账。
type ZkLockerAdapter struct {
	conn *zookeeper.Conn
}

var _ domain.Locker = (*ZkLockerAdapter)(nil)

func NewZkLockerAdapter(conn *zookeeper.Conn) *ZkLockerAdapter {
	return &ZkLockerAdapter{conn: conn}
}

// WithLock 实现 domain.Locker
func (a *ZkLockerAdapter) WithLock(ctx context.Context, resourceID string, fn func() error) error {
	lock := zookeeper.NewDistributedLock(a.conn, resourceID)
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to acquire lock for %s", resourceID)
	}
	defer lock.Unlock()
	return fn()
}

// NoopLocker 是 domain.Locker 的空实现，单实例部署和单元测试使用。
type NoopLocker struct{}

var _ domain.Locker = NoopLocker{}

func (NoopLocker) WithLock(_ context.Context, _ string, fn func() error) error {
	return fn()
}
