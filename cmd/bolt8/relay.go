package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dep2p/go-bolt8/internal/core/transport"
)

// relay 在标准输入输出与所有加密连接之间转发文本
type relay struct {
	out io.Writer

	mu    sync.Mutex
	conns map[string]*transport.Service
}

func newRelay(out io.Writer) *relay {
	return &relay{
		out:   out,
		conns: make(map[string]*transport.Service),
	}
}

// attach 跟踪连接并打印它收到的每条消息
func (r *relay) attach(svc *transport.Service) {
	r.mu.Lock()
	r.conns[svc.ID()] = svc
	r.mu.Unlock()

	peer := svc.RemoteNodeID().ShortString()
	r.printf("+ %s 已连接\n", peer)

	go func() {
		for msg := range svc.Messages() {
			r.printf("[%s] %s\n", peer, msg)
		}
		<-svc.Done()

		r.mu.Lock()
		delete(r.conns, svc.ID())
		r.mu.Unlock()

		if err := svc.Err(); err != nil {
			r.printf("- %s 断开: %v\n", peer, err)
		} else {
			r.printf("- %s 断开\n", peer)
		}
	}()
}

// count 返回当前连接数
func (r *relay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// broadcast 把 msg 发送给所有连接，返回成功数量
func (r *relay) broadcast(ctx context.Context, msg []byte) int {
	r.mu.Lock()
	targets := make([]*transport.Service, 0, len(r.conns))
	for _, s := range r.conns {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	sent := 0
	for _, s := range targets {
		if err := s.Send(ctx, msg); err != nil {
			logger.Debug("发送失败", "peer", s.RemoteNodeID().ShortString(), "error", err)
			continue
		}
		sent++
	}
	return sent
}

// pump 逐行读取 in 并广播，直到 EOF 或 ctx 结束
func (r *relay) pump(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if r.broadcast(ctx, line) == 0 {
			r.printf("（没有可用连接）\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (r *relay) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
