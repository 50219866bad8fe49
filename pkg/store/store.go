// Package store 把共享配置存储 (NFS 导出) 封装为带明确读写契约的接口:
// 写入走临时文件 + 原子 rename, 读取对缺失/损坏记录做有界退避重试。
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Store 是节点之间唯一的共享可变资源
type Store interface {
	ReadJoinRecord(ctx context.Context) (*JoinRecord, error)
	WriteJoinRecord(ctx context.Context, rec *JoinRecord) error
	ArtifactPath(name string) string
}

// RetryPolicy 控制读取缺失记录时的退避节奏
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 10, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

// MissingJoinRecordError 表示在允许的重试次数内始终没有可用的 join record,
// 通常意味着 control 节点还没有完成引导。
type MissingJoinRecordError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *MissingJoinRecordError) Error() string {
	return fmt.Sprintf("join record not available at %s after %d attempts: %v (install the control node first)", e.Path, e.Attempts, e.Err)
}

func (e *MissingJoinRecordError) Unwrap() error { return e.Err }

// FileStore 基于挂载好的共享目录实现 Store
type FileStore struct {
	Root  string
	Retry RetryPolicy
	Log   *logrus.Entry
}

func NewFileStore(root string, retry RetryPolicy, log *logrus.Entry) *FileStore {
	if retry.Attempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &FileStore{Root: root, Retry: retry, Log: log}
}

func (s *FileStore) ArtifactPath(name string) string {
	return filepath.Join(s.Root, name)
}

func (s *FileStore) recordPath() string {
	return s.ArtifactPath(joinRecordFile)
}

// WriteJoinRecord 原子覆盖写 join record (last-writer-wins, 无版本化)。
// 临时文件和目标在同一目录, rename 后读者要么看到旧记录要么看到完整新记录。
func (s *FileStore) WriteJoinRecord(ctx context.Context, rec *JoinRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.Root
	tmp, err := os.CreateTemp(dir, "."+joinRecordFile+".*")
	if err != nil {
		return fmt.Errorf("create temp record in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(encodeRecord(rec)); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, s.recordPath()); err != nil {
		return fmt.Errorf("publish join record: %w", err)
	}
	if s.Log != nil {
		s.Log.WithField("path", s.recordPath()).Info("join record published")
	}
	return nil
}

// ReadJoinRecord 读取 join record, 缺失或损坏时按策略重试。
// 重试窗口内 control 节点完成写入即可成功; 超出窗口返回 MissingJoinRecordError。
func (s *FileStore) ReadJoinRecord(ctx context.Context) (*JoinRecord, error) {
	delay := s.Retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= s.Retry.Attempts; attempt++ {
		rec, err := s.readOnce()
		if err == nil {
			return rec, nil
		}
		lastErr = err

		if s.Log != nil {
			s.Log.WithFields(logrus.Fields{
				"attempt": attempt,
				"of":      s.Retry.Attempts,
				"path":    s.recordPath(),
			}).WithError(err).Warn("join record not ready")
		}
		if attempt == s.Retry.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, &MissingJoinRecordError{Path: s.recordPath(), Attempts: attempt, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.Retry.MaxDelay {
			delay = s.Retry.MaxDelay
		}
	}
	return nil, &MissingJoinRecordError{Path: s.recordPath(), Attempts: s.Retry.Attempts, Err: lastErr}
}

func (s *FileStore) readOnce() (*JoinRecord, error) {
	data, err := os.ReadFile(s.recordPath())
	if err != nil {
		return nil, err
	}
	rec, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
