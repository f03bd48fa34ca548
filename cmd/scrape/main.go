package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/handlebauer/scrape"
	"github.com/handlebauer/scrape/internal/config"
	"github.com/handlebauer/scrape/internal/logging"
	"github.com/handlebauer/scrape/internal/server"
	"github.com/handlebauer/scrape/internal/server/routes"
	"github.com/handlebauer/scrape/internal/transport"
	"github.com/handlebauer/scrape/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath    string
	checkOnly     bool
	showVersion   bool
	serve         bool
	force         bool
	skipCache     bool
	allowDistinct bool
	maxAge        time.Duration
	refs          []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global, stdErr)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.Global.Origin
		fields["cache"] = cfg.Cache.CacheMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	client, err := scrape.New(cfg.Global.Origin, clientOptions(cfg, logger, registry)...)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化客户端失败: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["origin"] = client.Origin()
	fields["cache"] = cfg.Cache.CacheMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Debug("配置加载完成")

	if opts.serve {
		if err := startHTTPServer(ctx, cfg, client, registry, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	if len(opts.refs) == 0 {
		fmt.Fprintln(stdErr, "至少需要一个 ref，或使用 -serve 启动诊断服务")
		return 2
	}
	if failed := fetchAll(ctx, client, cfg.Global.Concurrency, opts); failed > 0 {
		return 1
	}
	return 0
}

// clientOptions 将配置映射为 scrape.Option。
func clientOptions(cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer) []scrape.Option {
	opts := []scrape.Option{
		scrape.WithContentType(scrape.ContentType(cfg.Global.ContentType)),
		scrape.WithMaxRetries(cfg.Retry.MaxAttempts),
		scrape.WithThrottle(cfg.Throttle.Limit, cfg.Throttle.Interval.DurationValue()),
		scrape.WithHTTPClient(transport.NewClient(cfg.Global.Timeout.DurationValue())),
		scrape.WithLogger(logger),
		scrape.WithMetrics(reg),
	}
	if cfg.Global.ReturnRaw {
		opts = append(opts, scrape.WithReturnRaw())
	}
	if cfg.Cache.Enabled {
		opts = append(opts, scrape.WithCache(scrape.CacheOptions{
			RootDirectory: cfg.Cache.RootDirectory,
			Name:          cfg.Cache.Name,
			FileExtension: cfg.Cache.FileExtension,
		}))
	} else {
		opts = append(opts, scrape.WithoutCache())
	}
	return opts
}

// fetchLine 是每个 ref 输出的一行 JSON。
type fetchLine struct {
	Ref       string `json:"ref"`
	Path      string `json:"path,omitempty"`
	FromCache bool   `json:"from_cache"`
	Status    int    `json:"status,omitempty"`
	Bytes     int    `json:"bytes"`
	Error     string `json:"error,omitempty"`
}

// fetchAll 以 concurrency 为上限并发抓取所有 ref，返回失败数量。
func fetchAll(ctx context.Context, client *scrape.Client, concurrency int, opts cliOptions) int {
	var fetchOpts []scrape.FetchOption
	if opts.force {
		fetchOpts = append(fetchOpts, scrape.Invalidate())
	}
	if opts.skipCache {
		fetchOpts = append(fetchOpts, scrape.SkipCache())
	}
	if opts.allowDistinct {
		fetchOpts = append(fetchOpts, scrape.AllowDistinctRef())
	}
	if opts.maxAge > 0 {
		fetchOpts = append(fetchOpts, scrape.WithMaxAge(opts.maxAge))
	}

	var (
		mu     sync.Mutex
		failed int
		enc    = json.NewEncoder(stdOut)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ref := range opts.refs {
		g.Go(func() error {
			line := fetchLine{Ref: ref}
			res, err := client.Fetch(gctx, ref, fetchOpts...)
			if err != nil {
				line.Error = err.Error()
				var reqErr *scrape.RequestError
				if errors.As(err, &reqErr) {
					line.Status = reqErr.StatusCode
				}
			} else {
				line.FromCache = res.FromCache()
				if res.Artifact != nil {
					line.Path = res.Artifact.Path
					line.Bytes = len(res.Artifact.Body)
				}
				if res.Raw != nil {
					line.Status = res.Raw.StatusCode
					line.Bytes = len(res.Raw.Body)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			return enc.Encode(line)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(stdErr, "输出结果失败: %v\n", err)
		return failed + 1
	}
	return failed
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		opts       cliOptions
		configFlag string
		maxAge     string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./scrape.toml，可被 SCRAPE_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.serve, "serve", false, "启动诊断 HTTP 服务")
	fs.BoolVar(&opts.force, "force", false, "跳过缓存查询，强制重新抓取")
	fs.BoolVar(&opts.skipCache, "skip-cache", false, "抓取结果不写入缓存")
	fs.BoolVar(&opts.allowDistinct, "allow-distinct", false, "允许抓取 origin 之外的绝对地址")
	fs.StringVar(&maxAge, "max-age", "", "缓存最大年龄，例如 12h 或 \"3 days\"")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	if maxAge != "" {
		age, err := scrape.ParseMaxAge(maxAge)
		if err != nil {
			return cliOptions{}, fmt.Errorf("解析 -max-age 失败: %w", err)
		}
		opts.maxAge = age
	}

	path := os.Getenv("SCRAPE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = config.DefaultPath
	}
	opts.configPath = path
	opts.refs = fs.Args()

	return opts, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, client *scrape.Client, registry *prometheus.Registry, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{Logger: logger})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, client)
	routes.RegisterMetricsRoute(app, registry)
	server.NotFound(app)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   cfg.Global.Listen,
	}).Info("Fiber 服务启动")

	return app.Listen(cfg.Global.Listen, fiber.ListenConfig{DisableStartupMessage: true})
}
