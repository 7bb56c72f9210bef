// Package scheduler 提供定时任务调度
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/logger"
)

// 单次任务执行超时
const taskTimeout = 5 * time.Minute

// Scheduler 定时任务调度器
type Scheduler struct {
	tasks  []*Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.Logger
}

// Task 定时任务
type Task struct {
	Name     string
	Interval time.Duration
	Handler  func(ctx context.Context) error
}

// NewScheduler 创建调度器
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make([]*Task, 0),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.Named("scheduler"),
	}
}

// AddTask 添加任务，interval 不大于 0 的任务不会被调度
func (s *Scheduler) AddTask(name string, interval time.Duration, handler func(ctx context.Context) error) {
	if interval <= 0 {
		s.log.Info("任务未启用", zap.String("task", name))
		return
	}
	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Handler:  handler,
	})
}

// Len 已注册任务数
func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.log.Info("调度器启动", zap.Int("tasks", len(s.tasks)))

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(task)
	}
}

// Stop 停止调度器并等待任务退出
func (s *Scheduler) Stop() {
	s.log.Info("调度器停止中")
	s.cancel()
	s.wg.Wait()
	s.log.Info("调度器已停止")
}

// runTask 运行单个任务
func (s *Scheduler) runTask(task *Task) {
	defer s.wg.Done()

	s.log.Info("任务启动", zap.String("task", task.Name), zap.Duration("interval", task.Interval))
	s.executeTask(task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("任务退出", zap.String("task", task.Name))
			return
		case <-ticker.C:
			s.executeTask(task)
		}
	}
}

// executeTask 执行一次任务，panic 只影响本次执行
func (s *Scheduler) executeTask(task *Task) {
	ctx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("任务执行 panic", zap.String("task", task.Name), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	start := time.Now()
	if err := task.Handler(ctx); err != nil {
		s.log.Warn("任务执行失败", zap.String("task", task.Name), zap.Error(err))
		return
	}
	s.log.Debug("任务执行完成", zap.String("task", task.Name), logger.Latency(time.Since(start)))
}
