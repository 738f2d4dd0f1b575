// Package main 提供 bolt8 命令行入口
//
// 启动一个 BOLT8 节点，可选地连接到对端，并把标准输入逐行作为消息发送。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bolt8"
	"github.com/dep2p/go-bolt8/pkg/lib/log"
)

var logger = log.Logger("bolt8/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 运行时参数
	// ─────────────────────────────────────────────────────────────────────
	listenAddr       = flag.String("listen", "", "TCP 监听地址，如 0.0.0.0:9735")
	connectAddr      = flag.String("connect", "", "启动后连接的节点 <node_id>@<host>[:<port>]")
	keyFile          = flag.String("key", "", "身份密钥文件路径（不存在时生成）")
	configFile       = flag.String("config", "", "配置文件路径")
	handshakeTimeout = flag.Duration("handshake-timeout", defaultHandshakeTimeout(), "每个握手步骤的超时")

	// ─────────────────────────────────────────────────────────────────────
	// 可观测性
	// ─────────────────────────────────────────────────────────────────────
	metricsAddr = flag.String("metrics", "", "Prometheus /metrics 监听地址")
	logLevel    = flag.String("log-level", "info", "日志级别 (debug/info/warn/error)")
	logFile     = flag.String("log", "", "日志文件路径")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showID      = flag.Bool("show-id", false, "打印节点 ID 后退出")
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(bolt8.VersionInfo())
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	closeLog, err := log.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := newRelay(os.Stdout)
	node, err := bolt8.New(
		bolt8.WithConfig(cfg),
		bolt8.WithInboundHandler(r.attach),
	)
	if err != nil {
		return fmt.Errorf("创建节点失败: %w", err)
	}

	if *showID {
		fmt.Println(node.NodeID())
		return node.Close()
	}

	logger.Info("启动 bolt8 节点", "version", bolt8.Version, "commit", bolt8.GitCommit)
	if err := node.Start(ctx); err != nil {
		_ = node.Close()
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	printNodeInfo(node)

	g, gctx := errgroup.WithContext(ctx)

	// /metrics
	if addr := cfg.Metrics.ListenAddr; addr != "" && cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsHandler(node),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("指标服务已启动", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// 主动连接
	if *connectAddr != "" {
		svc, err := node.ConnectString(gctx, *connectAddr)
		if err != nil {
			return err
		}
		fmt.Printf("已连接 %s\n", svc.RemoteNodeID())
		r.attach(svc)
	}

	// 标准输入 → 所有连接
	go func() {
		if err := r.pump(gctx, os.Stdin); err != nil {
			logger.Debug("标准输入结束", "error", err)
		}
	}()

	fmt.Println("节点已启动，输入文本发送给所有连接，按 Ctrl+C 退出")
	<-gctx.Done()
	fmt.Println("\n正在关闭节点...")

	stop()
	return g.Wait()
}

// metricsHandler 返回节点注册表的 promhttp 处理器
func metricsHandler(node *bolt8.Node) http.Handler {
	mux := http.NewServeMux()
	if g := node.Gatherer(); g != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return mux
}

// printNodeInfo 打印节点身份与地址
func printNodeInfo(node *bolt8.Node) {
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Printf("  节点 ID : %s\n", node.NodeID())
	if addr, err := node.Address(); err == nil {
		fmt.Printf("  地址    : %s\n", addr)
	} else {
		fmt.Println("  地址    : （未监听）")
	}
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
}

func printHelp() {
	fmt.Println("bolt8 - Lightning BOLT #8 加密传输节点")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  bolt8 [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  BOLT8_LISTEN_ADDR        监听地址")
	fmt.Println("  BOLT8_KEY_FILE           身份密钥文件")
	fmt.Println("  BOLT8_KEY_PASSWORD       密钥文件口令")
	fmt.Println("  BOLT8_HANDSHAKE_TIMEOUT  握手步骤超时，如 10s")
	fmt.Println("  BOLT8_METRICS_ADDR       指标监听地址")
	fmt.Println("  BOLT8_METRICS_ENABLED    是否收集指标 (true/false)")
	fmt.Println("  BOLT8_LOG_LEVEL          日志级别")
	fmt.Println("  BOLT8_LOG_FILE           日志文件路径")
	fmt.Println()
	fmt.Println("使用示例:")
	fmt.Println()
	fmt.Println("  # 监听并持久化身份")
	fmt.Println("  bolt8 -listen 127.0.0.1:9735 -key alice.key")
	fmt.Println()
	fmt.Println("  # 连接到对端")
	fmt.Println("  bolt8 -key bob.key -connect 02a1...@127.0.0.1:9735")
	fmt.Println()
	fmt.Println("  # 暴露 Prometheus 指标")
	fmt.Println("  bolt8 -listen :9735 -metrics 127.0.0.1:9100")
}
