package errors

import (
	"os"
	"time"

	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"moff.io/wemove/pkg/log"
)

var (
	reporters []Reporter
)

func init() {
	reporters = make([]Reporter, 0)
	if os.Getenv(debugMode) == "" {
		log.Info("Env DEBUG not set, report errors enabled.")
	} else {
		log.Info("Env DEBUG set, report errors disabled.")
	}
}

func report(err error) {
	if reporters == nil || err == nil {
		return
	}
	if os.Getenv(debugMode) != "" {
		return
	}
	for _, r := range reporters {
		r.Report(err)
	}
}

// Reporter 错误报告器
type Reporter interface {
	Report(error)
}

// RegisterReporter appends r to the reporters invoked by the *AndReport helpers.
func RegisterReporter(r Reporter) {
	if r == nil {
		return
	}
	reporters = append(reporters, r)
}

type sentryReporter struct {
	limiter *rateLimiter
}

func (s *sentryReporter) Report(err error) {
	stacks := callers().fullStack()
	// Report, report and the *AndReport helper come first.
	key := err.Error()
	if len(stacks) > 3 {
		key = stacks[3]
	}
	if limited, _ := s.limiter.StackBasedRateLimited(key); limited {
		return
	}
	sentry.CaptureException(err)
}

// 设置该变量，则sentry不会上报
const debugMode = "DEBUG"

// NewSentryReporter
// 初始化错误sentry报告器
// 当使用本公共包构建带report的报告时，会上报错误至已创建的sentry仓库.
// 同一调用位置的错误在silent时间内只上报一次.
// 环境变量DEBUG不为空时，不会产生错误上报
func NewSentryReporter(sentryDSN string, silent time.Duration) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	sentryClientOptions := sentry.ClientOptions{
		Dsn: sentryDSN,
	}

	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}

	sentryClientOptions.CaCerts = rootCAs
	err = sentry.Init(sentryClientOptions)
	if err != nil {
		return Wrap(err, "init sentry")
	}
	log.Info("sentry error reporter initialized.")
	RegisterReporter(&sentryReporter{limiter: newRateLimiter(silent)})
	return nil
}

// Flush waits until buffered sentry events are sent or the timeout expires.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
